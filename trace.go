package go5250

import (
	"encoding/hex"
	"fmt"
	"io"
)

// trace hex-dumps one record to the configured trace writer. Both
// directions run on the session loop goroutine, so blocks never
// interleave.
func (s *Session) trace(dir string, rec []byte) {
	if s.cfg.TraceWriter == nil {
		return
	}
	dumpRecord(s.cfg.TraceWriter, dir, rec)
}

// dumpRecord writes one direction-tagged hex+text block in the usual
// sixteen-bytes-per-line layout.
func dumpRecord(w io.Writer, dir string, rec []byte) {
	fmt.Fprintf(w, "%s %d bytes\n", dir, len(rec))
	d := hex.Dumper(w)
	d.Write(rec)
	d.Close()
}
