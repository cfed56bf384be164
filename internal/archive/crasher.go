package archive

import (
	"strings"
)

// DecoyCRC is written as the checksum of every crashed class entry.
const DecoyCRC uint32 = 0xDEADBEEF

// garbledName heads the archive so tools that list entries in order choke
// before reaching real content.
const garbledName = "\u0000￿\u0000/\u0000\u0000.class"

const fakeEnd = "PK\x05\x06"

// Crasher writes entries in a layout the JVM loads normally but archive
// inspectors and decompilers mishandle: each class is preceded by a decoy
// under a NUL-bearing name and an empty duplicate of itself, class entries
// carry a wrong checksum, and the archive comment is filled with fake
// end-of-central-directory signatures.
//
// The real entry is always written last under its name, so a loader that
// keeps the last duplicate reads the real bytes.
type Crasher struct {
	w      *Writer
	filler int
	begun  bool
}

// NewCrasher wraps w. commentFiller is the comment length in bytes.
func NewCrasher(w *Writer, commentFiller int) *Crasher {
	return &Crasher{w: w, filler: commentFiller}
}

func (c *Crasher) begin() error {
	if c.begun {
		return nil
	}
	c.begun = true
	return c.w.Add(Entry{Name: garbledName})
}

// WriteResource writes a pass-through entry unchanged.
func (c *Crasher) WriteResource(name string, data []byte) error {
	if err := c.begin(); err != nil {
		return err
	}
	return c.w.Add(Entry{Name: name, Data: data})
}

// WriteClass writes the decoy, the empty duplicate and the real entry for a
// class. Excluded classes keep their real checksum and get no decoys.
func (c *Crasher) WriteClass(name string, data []byte, excluded bool) error {
	if err := c.begin(); err != nil {
		return err
	}
	if excluded {
		return c.w.Add(Entry{Name: name, Data: data})
	}
	crc := DecoyCRC
	if err := c.w.Add(Entry{Name: DecoyName(name), Data: []byte{0}, CRC: &crc}); err != nil {
		return err
	}
	if err := c.w.Add(Entry{Name: name, CRC: &crc}); err != nil {
		return err
	}
	return c.w.Add(Entry{Name: name, Data: data, CRC: &crc})
}

// Finish sets the filler comment. The caller still closes the Writer.
func (c *Crasher) Finish() error {
	if err := c.begin(); err != nil {
		return err
	}
	return c.w.SetComment(FillerComment(commentLength(c.filler)))
}

// commentLength shortens n by one byte when a fake record inside the filler
// would otherwise have a comment length reaching exactly to the end of the
// archive, which the loader accepts as the real end record.
func commentLength(n int) int {
	// Every fake's own comment length field reads "PK".
	const fakeSpan = endLen + 0x4b50
	if n >= fakeSpan && (n-fakeSpan)%len(fakeEnd) == 0 {
		return n - 1
	}
	return n
}

// DecoyName inserts a NUL after the last '/' of name, or before it for
// entries in the root.
func DecoyName(name string) string {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return "\x00" + name
	}
	return name[:i+1] + "\x00" + name[i+1:]
}

// FillerComment returns n bytes of repeated end-record signatures.
func FillerComment(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(fakeEnd, n/len(fakeEnd)+1)[:n]
}
