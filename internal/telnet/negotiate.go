package telnet

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fieldexit/go5250/internal/auth"
	"github.com/fieldexit/go5250/internal/protocol"
)

// Negotiate runs the option handshake until binary and end-of-record
// are active in both directions, the terminal type has been sent, and
// the device name delivered when one is configured. It fails when the
// host refuses a required option or the deadline expires.
func (c *Conn) Negotiate(deadline time.Time) (Negotiated, error) {
	if c.phase == PhaseComplete {
		return c.result, nil
	}
	c.phase = PhaseInProgress
	if err := c.nc.SetReadDeadline(deadline); err != nil {
		return Negotiated{}, c.fail(fmt.Errorf("%w: set deadline: %v", ErrNegotiationFailed, err))
	}
	for !c.ready() {
		b, err := c.r.ReadByte()
		if err != nil {
			if isTimeout(err) {
				return Negotiated{}, c.fail(fmt.Errorf("%w: %s before deadline", ErrNegotiationFailed, c.stall()))
			}
			return Negotiated{}, c.fail(fmt.Errorf("%w: %v", ErrNegotiationFailed, err))
		}
		if b != protocol.IAC {
			c.pending = append(c.pending, b)
			continue
		}
		if err := c.command(); err != nil {
			return Negotiated{}, c.fail(err)
		}
	}
	if err := c.nc.SetReadDeadline(time.Time{}); err != nil {
		return Negotiated{}, c.fail(fmt.Errorf("%w: clear deadline: %v", ErrNegotiationFailed, err))
	}

	rows, cols, ok := protocol.Geometry(c.cfg.TerminalType)
	if !ok {
		rows, cols = protocol.DefaultRows, protocol.DefaultCols
	}
	c.result = Negotiated{
		TerminalType: c.cfg.TerminalType,
		DeviceName:   c.cfg.DeviceName,
		Rows:         rows,
		Cols:         cols,
		Enhanced:     c.enhanced,
	}
	c.phase = PhaseComplete
	c.log.Debug("negotiation complete",
		"terminal", c.result.TerminalType,
		"rows", rows, "cols", cols,
		"enhanced", c.enhanced)
	return c.result, nil
}

func (c *Conn) ready() bool {
	if !c.weBinary || !c.theyBinary || !c.weEOR || !c.theyEOR || !c.ttypeSent {
		return false
	}
	return c.cfg.DeviceName == "" || c.deviceNameSent
}

// stall names what the handshake is still waiting on, for timeouts.
func (c *Conn) stall() string {
	switch {
	case !c.ttypeSent:
		return "terminal type never requested"
	case c.cfg.DeviceName != "" && !c.deviceNameSent:
		return "device name never requested"
	default:
		return "binary or end-of-record never agreed"
	}
}

func (c *Conn) fail(err error) error {
	c.phase = PhaseFailed
	return err
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// command consumes one telnet command after its IAC.
func (c *Conn) command() error {
	cmd, err := c.r.ReadByte()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
	}
	switch cmd {
	case protocol.IAC:
		c.pending = append(c.pending, protocol.IAC)
	case protocol.DO, protocol.DONT, protocol.WILL, protocol.WONT:
		opt, err := c.r.ReadByte()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
		}
		return c.option(cmd, opt)
	case protocol.SB:
		return c.subnegotiation()
	case protocol.NOP, protocol.GA, protocol.DM:
		// keepalives and stream markers
	case protocol.EOR:
		c.log.Warn("end-of-record before negotiation completed")
	default:
		c.log.Debug("ignoring telnet command", "command", cmd)
	}
	return nil
}

func (c *Conn) option(cmd, opt byte) error {
	switch cmd {
	case protocol.DO:
		return c.doOption(opt)
	case protocol.DONT:
		return c.dontOption(opt)
	case protocol.WILL:
		return c.willOption(opt)
	case protocol.WONT:
		return c.wontOption(opt)
	default:
		return nil
	}
}

// doOption answers a host request for a client capability. Replies go
// out only on state changes so repeated probes cannot loop.
func (c *Conn) doOption(opt byte) error {
	switch opt {
	case protocol.OptBinary:
		if !c.weBinary {
			c.weBinary = true
			return c.send(protocol.WILL, opt)
		}
	case protocol.OptEOR:
		if !c.weEOR {
			c.weEOR = true
			return c.send(protocol.WILL, opt)
		}
	case protocol.OptTTYPE:
		if !c.weTType {
			c.weTType = true
			return c.send(protocol.WILL, opt)
		}
	case protocol.OptNewEnviron:
		if !c.weEnviron {
			c.weEnviron = true
			return c.send(protocol.WILL, opt)
		}
	case protocol.OptTN5250E:
		if !c.cfg.Enhanced {
			return c.send(protocol.WONT, opt)
		}
		if !c.enhanced {
			c.enhanced = true
			return c.send(protocol.WILL, opt)
		}
	case protocol.OptTimingMark:
		// A timing mark is a one-shot probe, not a mode.
		return c.send(protocol.WILL, opt)
	default:
		c.log.Debug("declining option", "option", optionName(opt))
		return c.send(protocol.WONT, opt)
	}
	return nil
}

func (c *Conn) dontOption(opt byte) error {
	switch opt {
	case protocol.OptBinary, protocol.OptEOR:
		return fmt.Errorf("%w: host refused %s", ErrNegotiationFailed, optionName(opt))
	case protocol.OptTTYPE:
		return fmt.Errorf("%w: host refused terminal type", ErrNegotiationFailed)
	case protocol.OptTN5250E:
		if c.enhanced {
			c.enhanced = false
			return c.send(protocol.WONT, opt)
		}
	}
	return nil
}

func (c *Conn) willOption(opt byte) error {
	switch opt {
	case protocol.OptBinary:
		if !c.theyBinary {
			c.theyBinary = true
			return c.send(protocol.DO, opt)
		}
	case protocol.OptEOR:
		if !c.theyEOR {
			c.theyEOR = true
			return c.send(protocol.DO, opt)
		}
	case protocol.OptSGA:
		if !c.theySGA {
			c.theySGA = true
			return c.send(protocol.DO, opt)
		}
	default:
		c.log.Debug("declining peer option", "option", optionName(opt))
		return c.send(protocol.DONT, opt)
	}
	return nil
}

func (c *Conn) wontOption(opt byte) error {
	switch opt {
	case protocol.OptBinary, protocol.OptEOR:
		return fmt.Errorf("%w: host withdrew %s", ErrNegotiationFailed, optionName(opt))
	}
	return nil
}

// subnegotiation consumes one IAC SB ... IAC SE block and answers the
// requests the client supports.
func (c *Conn) subnegotiation() error {
	payload, err := c.readSubnegotiation()
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	switch payload[0] {
	case protocol.OptTTYPE:
		if len(payload) >= 2 && payload[1] == protocol.TTypeSend {
			return c.sendTerminalType()
		}
	case protocol.OptNewEnviron:
		if len(payload) >= 2 && payload[1] == protocol.EnvSend {
			return c.sendEnvironment(payload[2:])
		}
	case protocol.OptTN5250E:
		c.log.Debug("ignoring tn5250e subnegotiation", "len", len(payload))
	default:
		c.log.Debug("ignoring subnegotiation", "option", optionName(payload[0]))
	}
	return nil
}

// readSubnegotiation reads up to IAC SE, undoing doubled IACs.
func (c *Conn) readSubnegotiation() ([]byte, error) {
	var payload []byte
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
		}
		if b != protocol.IAC {
			payload = append(payload, b)
		} else {
			b, err = c.r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNegotiationFailed, err)
			}
			switch b {
			case protocol.SE:
				return payload, nil
			case protocol.IAC:
				payload = append(payload, protocol.IAC)
			default:
				return nil, fmt.Errorf("%w: command %d inside subnegotiation", ErrNegotiationFailed, b)
			}
		}
		if len(payload) > protocol.MaxRecordSize {
			return nil, fmt.Errorf("%w: unterminated subnegotiation", ErrNegotiationFailed)
		}
	}
}

func (c *Conn) sendTerminalType() error {
	payload := make([]byte, 0, len(c.cfg.TerminalType)+2)
	payload = append(payload, protocol.OptTTYPE, protocol.TTypeIs)
	payload = append(payload, c.cfg.TerminalType...)
	if err := c.sendSubnegotiation(payload); err != nil {
		return err
	}
	c.ttypeSent = true
	c.log.Debug("sent terminal type", "type", c.cfg.TerminalType)
	return nil
}

// sendEnvironment answers a NEW-ENVIRON SEND. The request may carry the
// host's sign-on seed; the reply delivers the device name and, when
// credentials are configured and a seed arrived, the RFC 4777 user and
// password-substitute variables.
func (c *Conn) sendEnvironment(req []byte) error {
	if seed, ok := environSeed(req); ok {
		if len(seed) == auth.SeedSize {
			c.serverSeed = seed
		} else {
			c.log.Warn("ignoring sign-on seed of unexpected size", "len", len(seed))
		}
	}

	payload := []byte{protocol.OptNewEnviron, protocol.EnvIs}
	if c.cfg.User != "" {
		payload = appendEnviron(payload, protocol.EnvVar, protocol.EnvNameUser,
			[]byte(strings.ToUpper(c.cfg.User)))
	}
	if c.cfg.User != "" && c.cfg.Password != "" && c.serverSeed != nil {
		clientSeed, err := auth.GenerateSeed()
		if err != nil {
			return fmt.Errorf("sign-on seed: %w", err)
		}
		substitute, err := auth.Substitute(c.cfg.User, c.cfg.Password, c.serverSeed, clientSeed)
		if err != nil {
			return fmt.Errorf("sign-on substitute: %w", err)
		}
		payload = appendEnviron(payload, protocol.EnvUserVar, protocol.EnvNameSeed, clientSeed)
		payload = appendEnviron(payload, protocol.EnvUserVar, protocol.EnvNameSubstPwd, substitute)
	}
	if c.cfg.DeviceName != "" {
		payload = appendEnviron(payload, protocol.EnvUserVar, protocol.EnvNameDevice,
			[]byte(c.cfg.DeviceName))
	}

	if err := c.sendSubnegotiation(payload); err != nil {
		return err
	}
	if c.cfg.DeviceName != "" {
		c.deviceNameSent = true
	}
	c.log.Debug("sent environment",
		"device", c.cfg.DeviceName,
		"signon", c.cfg.User != "" && c.cfg.Password != "" && c.serverSeed != nil)
	return nil
}
