// Package go5250 is a headless 5250 terminal-emulation client for
// IBM i and AS/400-style hosts. It dials a controller, negotiates the
// telnet session, decodes the host's display data stream into a screen
// buffer with per-field attributes, tracks the keyboard-lock state of
// the operator information area, and exposes the result to automation:
//
//	s, err := go5250.Connect(ctx, go5250.Config{Host: "as400.example.com"})
//	if err != nil {
//		return err
//	}
//	defer s.Disconnect()
//
//	if err := s.AwaitUnlock(10 * time.Second); err != nil {
//		return err
//	}
//	if err := s.SendKeys("QUSER[tab]PASS[enter]"); err != nil {
//		return err
//	}
//	if err := s.AwaitUnlock(10 * time.Second); err != nil {
//		return err
//	}
//	text, err := s.ScreenText(go5250.Region{})
//
// A Session is safe for concurrent use: one receive goroutine owns the
// screen state, automation reads snapshots and queues keystrokes from
// any goroutine. Keys sent while the keyboard is locked wait in a
// bounded type-ahead queue and apply in order once the host restores
// the keyboard.
//
// Character translation is pluggable through the codec subpackage;
// the builtin registry covers the common single-byte EBCDIC code
// pages and custom pages can be registered without touching this
// package.
package go5250
