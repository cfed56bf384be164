package api

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/jvmmixer/internal/archive"
	"github.com/whit3rabbit/jvmmixer/internal/classfile"
)

// sampleJar holds demo/Main, whose run method calls demo/Util.twice.
func sampleJar(t *testing.T) []byte {
	t.Helper()
	main := classfile.NewClass("demo/Main", "java/lang/Object", classfile.Java7, classfile.AccPublic|classfile.AccSuper)
	main.AddMethod(classfile.AccPublic|classfile.AccStatic, "run", "()V", &classfile.Code{
		MaxStack: 1,
		Instructions: []classfile.Instruction{
			classfile.NewOp(classfile.ICONST_1),
			&classfile.MethodInsn{Code: classfile.INVOKESTATIC, Owner: "demo/Util", Name: "twice", Desc: "(I)I"},
			classfile.NewOp(classfile.POP),
			classfile.NewOp(classfile.RETURN),
		},
	})
	util := classfile.NewClass("demo/Util", "java/lang/Object", classfile.Java7, classfile.AccPublic|classfile.AccSuper)
	util.AddMethod(classfile.AccPublic|classfile.AccStatic, "twice", "(I)I", &classfile.Code{
		MaxStack:  2,
		MaxLocals: 1,
		Instructions: []classfile.Instruction{
			classfile.NewOp(classfile.ILOAD_0),
			classfile.NewOp(classfile.ICONST_2),
			classfile.NewOp(classfile.IMUL),
			classfile.NewOp(classfile.IRETURN),
		},
	})

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, c := range []*classfile.Class{main, util} {
		data, err := c.Encode(classfile.Full)
		require.NoError(t, err)
		w, err := zw.Create(c.Name + ".class")
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// callSiteStrings returns the string bootstrap arguments of the first
// invokedynamic in m, decoded to Go strings.
func callSiteStrings(t *testing.T, c *classfile.Class, m *classfile.Method) []string {
	t.Helper()
	for _, insn := range m.Code.Instructions {
		op, ok := insn.(*classfile.Op)
		if !ok || op.Code != classfile.INVOKEDYNAMIC {
			continue
		}
		indy := c.Pool.Get(binary.BigEndian.Uint16(op.Operands))
		require.NotNil(t, indy)
		require.Less(t, int(indy.A), len(c.Bootstraps))

		var out []string
		for _, idx := range c.Bootstraps[indy.A].Args {
			arg := c.Pool.Get(idx)
			if arg.Tag != classfile.TagString {
				continue
			}
			raw, err := c.Pool.Utf8(arg.A)
			require.NoError(t, err)
			out = append(out, classfile.GoString(raw))
		}
		return out
	}
	t.Fatalf("no invokedynamic in %s.%s", c.Name, m.Name)
	return nil
}

func TestNewObfuscator(t *testing.T) {
	obf, err := NewObfuscator(Options{})
	require.NoError(t, err)
	require.NotNil(t, obf.Config)
	assert.False(t, obf.Config.Obfuscation.Crasher.Enabled)

	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
silent: false
seed_phrase: "from-file"
obfuscation:
  crasher:
    enabled: true
archive:
  compression: store
`), 0644))

	off := false
	obf, err = NewObfuscator(Options{
		ConfigPath: configPath,
		Silent:     true,
		Seed:       7,
		Crasher:    &off,
		Libraries:  []string{"deps.jar"},
	})
	require.NoError(t, err)
	assert.True(t, obf.Config.Silent)
	assert.Equal(t, int64(7), obf.Config.Seed)
	assert.Empty(t, obf.Config.SeedPhrase)
	assert.False(t, obf.Config.Obfuscation.Crasher.Enabled)
	assert.Equal(t, "store", obf.Config.Archive.Compression)
	assert.Equal(t, []string{"deps.jar"}, obf.Config.Libraries)
}

func TestNewObfuscatorErrors(t *testing.T) {
	_, err := NewObfuscator(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("archive:\n  compression: lzma\n"), 0644))
	_, err = NewObfuscator(Options{ConfigPath: configPath})
	assert.Error(t, err)
}

func TestSilentSuppressesInfoLogs(t *testing.T) {
	logger, ok := log.Log.(*log.Logger)
	require.True(t, ok)
	handler, level := logger.Handler, logger.Level
	t.Cleanup(func() {
		log.SetHandler(handler)
		log.SetLevel(level)
	})

	mem := memory.New()
	log.SetHandler(mem)
	log.SetLevel(log.InfoLevel)

	obf, err := NewObfuscator(Options{Silent: true, Seed: 11})
	require.NoError(t, err)
	_, _, err = obf.ObfuscateBytes(sampleJar(t))
	require.NoError(t, err)

	for _, e := range mem.Entries {
		assert.GreaterOrEqual(t, e.Level, log.WarnLevel, "unexpected %s entry %q", e.Level, e.Message)
	}
}

func TestObfuscateBytesIsRepeatable(t *testing.T) {
	obf, err := NewObfuscator(Options{Silent: true, Seed: 1234})
	require.NoError(t, err)
	input := sampleJar(t)

	first, r1, err := obf.ObfuscateBytes(input)
	require.NoError(t, err)
	second, r2, err := obf.ObfuscateBytes(input)
	require.NoError(t, err)
	assert.Equal(t, first, second, "each call starts from a fresh context")
	assert.Equal(t, int64(1234), r1.Seed)
	assert.Equal(t, r1.BootstrapClass, r2.BootstrapClass)
	assert.Equal(t, 1, r1.Indirection.CallSites)
}

func TestDecryptIdentifier(t *testing.T) {
	obf, err := NewObfuscator(Options{Silent: true, Seed: 99})
	require.NoError(t, err)
	out, _, err := obf.ObfuscateBytes(sampleJar(t))
	require.NoError(t, err)

	a, err := archive.Read(out)
	require.NoError(t, err)
	data, err := a.ReadEntry("demo/Main.class")
	require.NoError(t, err)
	c, err := classfile.Parse(data)
	require.NoError(t, err)
	m := c.Method("run", "()V")
	require.NotNil(t, m)

	args := callSiteStrings(t, c, m)
	require.Len(t, args, 3)
	assert.NotEqual(t, "demo.Util", args[0])

	var plain []string
	for _, s := range args {
		plain = append(plain, DecryptIdentifier("demo/Main", "run", s))
	}
	assert.Equal(t, []string{"demo.Util", "twice", "(I)I"}, plain)
	assert.Equal(t, args[1], DecryptIdentifier("demo.Main", "run", "twice"), "the cipher is its own inverse")
}

func TestObfuscateJarWithCrasher(t *testing.T) {
	on := true
	obf, err := NewObfuscator(Options{Silent: true, Seed: 5, Crasher: &on})
	require.NoError(t, err)

	dir := t.TempDir()
	in := filepath.Join(dir, "in.jar")
	out := filepath.Join(dir, "out.jar")
	require.NoError(t, os.WriteFile(in, sampleJar(t), 0644))

	report, err := obf.ObfuscateJar(in, out)
	require.NoError(t, err)
	assert.True(t, report.Crasher)

	_, err = zip.OpenReader(out)
	assert.Error(t, err, "standard readers reject the output")

	a, err := archive.ReadFile(out)
	require.NoError(t, err)
	for _, name := range []string{"demo/Main.class", "demo/Util.class"} {
		data, err := a.ReadEntry(name)
		require.NoError(t, err)
		_, err = classfile.Parse(data)
		assert.NoError(t, err, name)
	}
}
