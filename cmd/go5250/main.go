package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/fieldexit/go5250"
	"github.com/fieldexit/go5250/internal/version"
)

func main() {
	fs := flag.NewFlagSet("go5250", flag.ExitOnError)
	var (
		host     = fs.String("host", "", "host to connect to")
		port     = fs.Int("port", 0, "port to connect to (default 23, or 992 with -tls)")
		tlsMode  = fs.String("tls", "", "transport security: none or tls")
		insecure = fs.Bool("insecure", false, "skip TLS certificate verification")
		proxy    = fs.String("proxy", "", "SOCKS5 proxy address")
		device   = fs.String("device", "", "device name to request")
		termType = fs.String("type", "", "terminal type (default "+go5250.DefaultTerminalType+")")
		user     = fs.String("user", "", "user profile for auto sign-on; the password is read from the terminal")
		codepage = fs.String("codepage", "", "EBCDIC code page (default "+go5250.DefaultCodepage+")")
		enhanced = fs.Bool("enhanced", false, "offer the enhanced protocol extensions")
		profiles = fs.String("profiles", "", "YAML connection profile file")
		profile  = fs.String("profile", "", "profile name within -profiles")
		keys     = fs.String("keys", "", "key script to send once the keyboard unlocks, e.g. \"QUSER[tab]PASS[enter]\"")
		wait     = fs.Duration("wait", 30*time.Second, "how long to wait for each keyboard unlock")
		trace    = fs.String("trace", "", "write a record-level hex trace to this file")
		verbose  = fs.Bool("verbose", false, "log protocol detail to stderr")
		showVer  = fs.Bool("version", false, "print version and exit")
	)
	fs.Parse(os.Args[1:])

	if *showVer {
		fmt.Printf("go5250 %s (%s)\n", version.VERSION, version.Commit)
		os.Exit(0)
	}

	var cfg go5250.Config
	if *profiles != "" {
		all, err := go5250.LoadProfiles(*profiles)
		if err != nil {
			fmt.Fprintf(os.Stderr, "go5250: %v\n", err)
			os.Exit(1)
		}
		p, ok := all[*profile]
		if !ok {
			fmt.Fprintf(os.Stderr, "go5250: profile %q not found in %s\n", *profile, *profiles)
			os.Exit(1)
		}
		cfg = p.Config()
	} else if *profile != "" {
		fmt.Fprintln(os.Stderr, "error: -profile requires -profiles")
		os.Exit(1)
	}

	// Explicit flags override whatever the profile supplied.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
		case "port":
			cfg.Port = *port
		case "tls":
			cfg.TLSMode = *tlsMode
		case "insecure":
			cfg.InsecureSkipVerify = *insecure
		case "proxy":
			cfg.Proxy = *proxy
		case "device":
			cfg.DeviceName = *device
		case "type":
			cfg.TerminalType = *termType
		case "user":
			cfg.User = *user
		case "codepage":
			cfg.Codepage = *codepage
		case "enhanced":
			cfg.Enhanced = *enhanced
		}
	})

	if cfg.Host == "" {
		fmt.Fprintln(os.Stderr, "error: -host (or a -profiles/-profile pair naming one) is required")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "usage: go5250 -host <host> [-port 23] [-tls tls] [-keys <script>]")
		fmt.Fprintln(os.Stderr, "       go5250 -profiles hosts.yaml -profile production [-keys <script>]")
		fmt.Fprintln(os.Stderr, "       go5250 -version")
		os.Exit(1)
	}

	if cfg.User != "" && cfg.Password == "" {
		pw, err := readPassword(cfg.User)
		if err != nil {
			fmt.Fprintf(os.Stderr, "go5250: read password: %v\n", err)
			os.Exit(1)
		}
		cfg.Password = pw
	}

	if *verbose {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if *trace != "" {
		f, err := os.Create(*trace)
		if err != nil {
			fmt.Fprintf(os.Stderr, "go5250: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		cfg.TraceWriter = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *keys, *wait); err != nil {
		fmt.Fprintf(os.Stderr, "go5250: %v\n", err)
		os.Exit(1)
	}
}

// run connects, waits out the sign-on exchange, applies the key script
// if one was given, and prints the resulting screen.
func run(ctx context.Context, cfg go5250.Config, keys string, wait time.Duration) error {
	s, err := go5250.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	// A signal tears the session down, which unblocks any wait below.
	go func() {
		<-ctx.Done()
		s.Disconnect()
	}()

	if err := await(s, wait); err != nil {
		return err
	}
	if keys != "" {
		if err := s.SendKeys(keys); err != nil {
			return err
		}
		if err := await(s, wait); err != nil {
			return err
		}
	}
	printScreen(s)
	return nil
}

// await waits for the keyboard, dumping the stuck screen to stderr on
// timeout so the operator can see what the host is asking.
func await(s *go5250.Session, wait time.Duration) error {
	err := s.AwaitUnlock(wait)
	var ute *go5250.UnlockTimeoutError
	if errors.As(err, &ute) {
		fmt.Fprintln(os.Stderr, ute.Snapshot)
	}
	return err
}

// printScreen writes the screen with a frame and status line when
// stdout is a terminal, and the bare text when piped.
func printScreen(s *go5250.Session) {
	text := s.Snapshot()
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Println(text)
		return
	}
	_, cols := s.Size()
	rule := strings.Repeat("-", cols)
	fmt.Println(rule)
	fmt.Println(text)
	fmt.Println(rule)
	status := s.Status()
	if status == "" {
		status = "Ready"
	}
	row, col := s.Cursor()
	fmt.Printf("%s  cursor %d,%d\n", status, row, col)
}

// readPassword takes the sign-on password without echo when stdin is a
// terminal, and from the next stdin line otherwise.
func readPassword(user string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprintf(os.Stderr, "password for %s: ", user)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
