package archive

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rsc.io/binaryregexp"
)

var classData = bytes.Repeat([]byte{0xca, 0xfe, 0xba, 0xbe, 0, 0, 0, 51}, 64)

func writePlain(t *testing.T, compression string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, compression)
	require.NoError(t, err)
	require.NoError(t, w.Add(Entry{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")}))
	require.NoError(t, w.Add(Entry{Name: "com/app/Main.class", Data: classData}))
	require.NoError(t, w.Add(Entry{Name: "com/app/é.txt", Data: []byte("x")}))
	assert.Equal(t, 3, w.Entries())
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeCrashed(t *testing.T, filler int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, "deflate")
	require.NoError(t, err)
	c := NewCrasher(w, filler)
	require.NoError(t, c.WriteResource("META-INF/MANIFEST.MF", []byte("Manifest-Version: 1.0\n")))
	require.NoError(t, c.WriteClass("com/app/Main.class", classData, false))
	require.NoError(t, c.WriteClass("com/app/Keep.class", classData, true))
	require.NoError(t, c.Finish())
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestPlainArchiveIsStandard(t *testing.T) {
	for _, compression := range []string{"deflate", "store"} {
		t.Run(compression, func(t *testing.T) {
			data := writePlain(t, compression)

			zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)
			require.Len(t, zr.File, 3)
			rc, err := zr.File[1].Open()
			require.NoError(t, err)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, classData, got, "checksums verify with the standard reader")
			assert.Equal(t, uint16(0x21), zr.File[1].ModifiedDate)
			assert.NotZero(t, zr.File[2].Flags&flagUTF8)
			assert.Zero(t, zr.File[1].Flags&flagUTF8)

			a, err := Read(data)
			require.NoError(t, err)
			got, err = a.ReadEntry("com/app/Main.class")
			require.NoError(t, err)
			assert.Equal(t, classData, got)
		})
	}
}

func TestNewWriterRejectsUnknownCompression(t *testing.T) {
	_, err := NewWriter(io.Discard, "lzma")
	assert.Error(t, err)
}

func TestCrasherLayout(t *testing.T) {
	data := writeCrashed(t, 32000)

	a, err := Read(data)
	require.NoError(t, err)

	var names []string
	for _, f := range a.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		garbledName,
		"META-INF/MANIFEST.MF",
		"com/app/\x00Main.class",
		"com/app/Main.class",
		"com/app/Main.class",
		"com/app/Keep.class",
	}, names)

	f, ok := a.Lookup("com/app/Main.class")
	require.True(t, ok)
	assert.Equal(t, DecoyCRC, f.CRC32)
	assert.Equal(t, 1, a.Shadowed("com/app/Main.class"))
	got, err := a.Open(f)
	require.NoError(t, err)
	assert.Equal(t, classData, got, "the last duplicate carries the real bytes")

	keep, ok := a.Lookup("com/app/Keep.class")
	require.True(t, ok)
	assert.Equal(t, crc32.ChecksumIEEE(classData), keep.CRC32, "excluded classes keep their checksum")
	assert.Zero(t, a.Shadowed("com/app/Keep.class"))

	decoy, err := a.ReadEntry("com/app/\x00Main.class")
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, decoy)

	assert.Len(t, a.Comment, 32000)
	assert.Equal(t, []byte("PK\x05\x06PK\x05\x06"), a.Comment[:8])
}

func TestCrasherLocalHeaders(t *testing.T) {
	data := writeCrashed(t, 32000)
	name := "com/app/Main.class"

	lfh := binaryregexp.MustCompile(
		binaryregexp.QuoteMeta("PK\x03\x04") +
			`[\x00-\xff]{26}` +
			binaryregexp.QuoteMeta(name))
	matches := lfh.FindAllIndex(data, -1)
	require.Len(t, matches, 2, "empty duplicate and real entry")
	for _, m := range matches {
		assert.Equal(t, DecoyCRC, binary.LittleEndian.Uint32(data[m[0]+14:]))
	}

	cdh := binaryregexp.MustCompile(
		binaryregexp.QuoteMeta("PK\x01\x02") +
			`[\x00-\xff]{42}` +
			binaryregexp.QuoteMeta("com/app/\x00Main.class"))
	assert.Len(t, cdh.FindAllIndex(data, -1), 1)
}

func TestCrasherBreaksStandardReader(t *testing.T) {
	data := writeCrashed(t, 32000)
	_, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	assert.Error(t, err)
}

func TestCrasherIsAdditive(t *testing.T) {
	plain, err := Read(writePlain(t, "deflate"))
	require.NoError(t, err)
	crashed, err := Read(writeCrashed(t, 32000))
	require.NoError(t, err)

	for _, name := range []string{"META-INF/MANIFEST.MF", "com/app/Main.class"} {
		want, err := plain.ReadEntry(name)
		require.NoError(t, err)
		got, err := crashed.ReadEntry(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestCrasherCommentLengths(t *testing.T) {
	tests := []struct {
		filler int
		want   int
	}{
		{0, 0},
		{5, 5},
		{32000, 32000},
		{19302, 19301},
		{19306, 19305},
		{65535, 65535},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commentLength(tt.filler), "filler %d", tt.filler)

		data := writeCrashed(t, tt.filler)
		a, err := Read(data)
		require.NoError(t, err, "filler %d", tt.filler)
		assert.Len(t, a.Comment, tt.want)
		got, err := a.ReadEntry("com/app/Main.class")
		require.NoError(t, err)
		assert.Equal(t, classData, got)
	}
}

func TestDecoyName(t *testing.T) {
	assert.Equal(t, "a/b/\x00C.class", DecoyName("a/b/C.class"))
	assert.Equal(t, "\x00C.class", DecoyName("C.class"))
}

func TestFillerComment(t *testing.T) {
	assert.Equal(t, "", FillerComment(0))
	assert.Equal(t, "PK\x05", FillerComment(3))
	assert.Equal(t, "PK\x05\x06PK", FillerComment(6))
}

func TestReadToleratesTrailingData(t *testing.T) {
	data := append(writePlain(t, "store"), []byte("trailing junk")...)
	a, err := Read(data)
	require.NoError(t, err)
	got, err := a.ReadEntry("com/app/Main.class")
	require.NoError(t, err)
	assert.Equal(t, classData, got)
}

func TestReadErrors(t *testing.T) {
	_, err := Read([]byte("definitely not an archive, just some bytes"))
	assert.ErrorIs(t, err, ErrNoDirectory)

	_, err = Read(nil)
	assert.ErrorIs(t, err, ErrNoDirectory)

	a, err := Read(writePlain(t, "store"))
	require.NoError(t, err)
	_, err = a.ReadEntry("missing")
	assert.Error(t, err)
}
