package telnet

import (
	"fmt"

	"github.com/fieldexit/go5250/internal/protocol"
)

// ReadRecord assembles one logical record, undoing doubled IACs and
// answering option probes that arrive between records. It blocks until
// a record terminator or a connection error.
func (c *Conn) ReadRecord() ([]byte, error) {
	rec := c.pending
	c.pending = nil
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if b != protocol.IAC {
			rec = append(rec, b)
		} else {
			cmd, err := c.r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("read record: %w", err)
			}
			switch cmd {
			case protocol.IAC:
				rec = append(rec, protocol.IAC)
			case protocol.EOR:
				return rec, nil
			case protocol.DO, protocol.DONT, protocol.WILL, protocol.WONT:
				opt, err := c.r.ReadByte()
				if err != nil {
					return nil, fmt.Errorf("read record: %w", err)
				}
				if err := c.option(cmd, opt); err != nil {
					return nil, err
				}
			case protocol.SB:
				if err := c.subnegotiation(); err != nil {
					return nil, err
				}
			case protocol.NOP, protocol.GA, protocol.DM:
			default:
				c.log.Debug("ignoring telnet command between records", "command", cmd)
			}
		}
		if len(rec) > protocol.MaxRecordSize {
			return nil, protocol.ErrRecordTooLarge
		}
	}
}

// WriteRecord transmits one logical record, escaping IACs and
// appending the record terminator.
func (c *Conn) WriteRecord(raw []byte) error {
	escaped := protocol.EscapeIAC(raw)
	out := make([]byte, 0, len(escaped)+2)
	out = append(out, escaped...)
	out = append(out, protocol.IAC, protocol.EOR)
	if _, err := c.nc.Write(out); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// SendSysReq transmits the system-request key, which travels as a
// telnet command rather than inside a record.
func (c *Conn) SendSysReq() error {
	return c.writeRaw(protocol.IAC, protocol.IP)
}

// SendAttn transmits the attention key, likewise out of band.
func (c *Conn) SendAttn() error {
	return c.writeRaw(protocol.IAC, protocol.BRK)
}
