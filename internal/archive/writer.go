// Package archive writes output jars, optionally in a layout that breaks
// archive-inspection tools, and reads them back the way the JVM class
// loader does.
package archive

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"hash/crc32"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Compression methods as stored in entry headers.
const (
	Store   uint16 = zip.Store
	Deflate uint16 = zip.Deflate
)

const (
	flagUTF8 = 0x800

	versionStore   = 10
	versionDeflate = 20

	// 1980-01-01 00:00, the earliest DOS timestamp. Every entry carries it
	// so output is reproducible for a fixed seed.
	dosDate = 0x21
	dosTime = 0
)

// ErrTooLarge is returned for entries or comments the format cannot describe
// without ZIP64 records.
var ErrTooLarge = errors.New("archive: entry too large")

// Entry is one file written to the archive. When CRC is non-nil its value is
// written in both headers instead of the real checksum.
type Entry struct {
	Name string
	Data []byte
	CRC  *uint32
}

// Writer serializes entries one at a time. Names are written as given,
// duplicates included.
type Writer struct {
	zw      *zip.Writer
	method  uint16
	entries int
	written int64
}

// NewWriter returns a Writer using the named compression, "deflate" or
// "store".
func NewWriter(w io.Writer, compression string) (*Writer, error) {
	var method uint16
	switch strings.ToLower(compression) {
	case "", "deflate":
		method = Deflate
	case "store":
		method = Store
	default:
		return nil, errors.Errorf("archive: unknown compression %q", compression)
	}
	return &Writer{zw: zip.NewWriter(w), method: method}, nil
}

// Add writes e's local header and data. Empty entries are always stored.
func (w *Writer) Add(e Entry) error {
	if uint64(len(e.Data)) >= math.MaxUint32 {
		return errors.Wrap(ErrTooLarge, e.Name)
	}
	method := w.method
	if len(e.Data) == 0 {
		method = Store
	}
	payload, err := compress(method, e.Data)
	if err != nil {
		return errors.Wrapf(err, "compress %s", e.Name)
	}

	crc := crc32.ChecksumIEEE(e.Data)
	if e.CRC != nil {
		crc = *e.CRC
	}
	version := uint16(versionDeflate)
	if method == Store {
		version = versionStore
	}
	fh := &zip.FileHeader{
		Name:               e.Name,
		CreatorVersion:     versionDeflate,
		ReaderVersion:      version,
		Method:             method,
		ModifiedDate:       dosDate,
		ModifiedTime:       dosTime,
		CRC32:              crc,
		CompressedSize64:   uint64(len(payload)),
		UncompressedSize64: uint64(len(e.Data)),
	}
	if !isASCII(e.Name) && utf8.ValidString(e.Name) {
		fh.Flags |= flagUTF8
	}
	fw, err := w.zw.CreateRaw(fh)
	if err != nil {
		return errors.Wrapf(err, "write header for %s", e.Name)
	}
	if _, err := fw.Write(payload); err != nil {
		return errors.Wrapf(err, "write %s", e.Name)
	}
	w.entries++
	w.written += int64(len(payload))
	return nil
}

// SetComment sets the end-of-central-directory comment.
func (w *Writer) SetComment(comment string) error {
	if len(comment) > math.MaxUint16 {
		return errors.Wrapf(ErrTooLarge, "comment of %d bytes", len(comment))
	}
	return w.zw.SetComment(comment)
}

// Entries returns the number of entries written so far.
func (w *Writer) Entries() int { return w.entries }

// Close writes the central directory and end record. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	return w.zw.Close()
}

func compress(method uint16, data []byte) ([]byte, error) {
	if method == Store {
		return data, nil
	}
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
