package archive

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	locSig = 0x04034b50
	cenSig = 0x02014b50
	endSig = 0x06054b50

	locLen = 30
	cenLen = 46
	endLen = 22
)

var (
	// ErrNoDirectory is returned when no usable end record is found.
	ErrNoDirectory = errors.New("archive: end of central directory not found")
	// ErrFormat is returned for a malformed directory or local header.
	ErrFormat = errors.New("archive: malformed entry")
)

// File is one central directory record.
type File struct {
	Name             string
	Flags            uint16
	Method           uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	offset           int64
}

// Archive is a parsed archive. Lookups follow the JVM loader: the end record
// is the last one whose comment reaches the end of the data or whose
// directory and first local header carry valid signatures, and among
// duplicate names the last directory record wins. Checksums are not verified.
type Archive struct {
	Files   []*File
	Comment []byte

	data  []byte
	index map[string]*File
	dups  map[string]int
}

// ReadFile reads and parses the archive at path.
func ReadFile(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return Read(data)
}

// Read parses data.
func Read(data []byte) (*Archive, error) {
	end, err := findEnd(data)
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	total := int(le.Uint16(data[end+10:]))
	size := int64(le.Uint32(data[end+12:]))
	dirOff := int64(le.Uint32(data[end+16:]))
	comLen := int(le.Uint16(data[end+20:]))

	cenPos := int64(end) - size
	base := cenPos - dirOff
	if cenPos < 0 || base < 0 {
		return nil, errors.Wrap(ErrFormat, "central directory out of range")
	}

	a := &Archive{
		data:  data,
		index: make(map[string]*File, total),
		dups:  map[string]int{},
	}
	if end+endLen+comLen <= len(data) {
		a.Comment = data[end+endLen : end+endLen+comLen]
	}

	pos := cenPos
	for i := 0; i < total; i++ {
		if pos+cenLen > int64(end) || le.Uint32(data[pos:]) != cenSig {
			return nil, errors.Wrapf(ErrFormat, "directory record %d", i)
		}
		rec := data[pos:]
		nameLen := int64(le.Uint16(rec[28:]))
		extraLen := int64(le.Uint16(rec[30:]))
		commentLen := int64(le.Uint16(rec[32:]))
		if pos+cenLen+nameLen > int64(end) {
			return nil, errors.Wrapf(ErrFormat, "directory record %d name", i)
		}
		f := &File{
			Name:             string(rec[cenLen : cenLen+nameLen]),
			Flags:            le.Uint16(rec[8:]),
			Method:           le.Uint16(rec[10:]),
			CRC32:            le.Uint32(rec[16:]),
			CompressedSize:   le.Uint32(rec[20:]),
			UncompressedSize: le.Uint32(rec[24:]),
			offset:           base + int64(le.Uint32(rec[42:])),
		}
		if _, seen := a.index[f.Name]; seen {
			a.dups[f.Name]++
		}
		a.Files = append(a.Files, f)
		a.index[f.Name] = f
		pos += cenLen + nameLen + extraLen + commentLen
	}
	return a, nil
}

// findEnd scans backwards for the end record. A candidate whose comment does
// not end exactly at the end of data is accepted only if the directory and
// first local header it points at start with their signatures.
func findEnd(data []byte) (int, error) {
	le := binary.LittleEndian
	minPos := len(data) - (0xffff + endLen)
	if minPos < 0 {
		minPos = 0
	}
	for i := len(data) - endLen; i >= minPos; i-- {
		if le.Uint32(data[i:]) != endSig {
			continue
		}
		comLen := int(le.Uint16(data[i+20:]))
		if i+endLen+comLen == len(data) {
			return i, nil
		}
		cenPos := int64(i) - int64(le.Uint32(data[i+12:]))
		locPos := cenPos - int64(le.Uint32(data[i+16:]))
		if cenPos < 0 || locPos < 0 || cenPos+4 > int64(len(data)) || locPos+4 > int64(len(data)) {
			continue
		}
		if le.Uint32(data[cenPos:]) != cenSig || le.Uint32(data[locPos:]) != locSig {
			continue
		}
		return i, nil
	}
	return 0, ErrNoDirectory
}

// Lookup returns the entry the loader would read for name.
func (a *Archive) Lookup(name string) (*File, bool) {
	f, ok := a.index[name]
	return f, ok
}

// Shadowed returns how many earlier records share name with the one Lookup
// returns.
func (a *Archive) Shadowed(name string) int {
	return a.dups[name]
}

// Open returns the uncompressed data of f. The data offset is taken from the
// local header's own name and extra lengths.
func (a *Archive) Open(f *File) ([]byte, error) {
	le := binary.LittleEndian
	if f.offset < 0 || f.offset+locLen > int64(len(a.data)) || le.Uint32(a.data[f.offset:]) != locSig {
		return nil, errors.Wrapf(ErrFormat, "local header of %q", f.Name)
	}
	loc := a.data[f.offset:]
	start := f.offset + locLen + int64(le.Uint16(loc[26:])) + int64(le.Uint16(loc[28:]))
	stop := start + int64(f.CompressedSize)
	if stop > int64(len(a.data)) {
		return nil, errors.Wrapf(ErrFormat, "data of %q", f.Name)
	}
	raw := a.data[start:stop]

	switch f.Method {
	case Store:
		return raw, nil
	case Deflate:
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, errors.Wrapf(err, "inflate %q", f.Name)
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrFormat, "unsupported method %d for %q", f.Method, f.Name)
	}
}

// ReadEntry looks up name and returns its data.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	f, ok := a.Lookup(name)
	if !ok {
		return nil, errors.Errorf("archive: no entry %q", name)
	}
	return a.Open(f)
}
