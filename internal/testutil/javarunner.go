// Package testutil compiles and runs Java programs for behavioral tests.
package testutil

import (
	"archive/zip"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// JavaRunner provides utilities for running Java in tests
type JavaRunner struct {
	T *testing.T
}

// NewJavaRunner creates a new Java runner
func NewJavaRunner(t *testing.T) *JavaRunner {
	return &JavaRunner{T: t}
}

// SkipIfJavaNotAvailable skips the test unless both java and javac are installed
func (r *JavaRunner) SkipIfJavaNotAvailable() {
	for _, tool := range []string{"java", "javac"} {
		if _, err := exec.LookPath(tool); err != nil {
			r.T.Skipf("%s not available, skipping behavioral test", tool)
		}
	}
}

// Compile writes sources (path relative to the source root -> content), runs
// javac and returns every produced class file keyed by its entry path.
func (r *JavaRunner) Compile(sources map[string]string) map[string][]byte {
	r.T.Helper()
	r.SkipIfJavaNotAvailable()

	srcDir := filepath.Join(r.T.TempDir(), "src")
	outDir := filepath.Join(r.T.TempDir(), "classes")
	args := []string{"-d", outDir}
	for rel, body := range sources {
		path := filepath.Join(srcDir, filepath.FromSlash(rel))
		require.NoError(r.T, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(r.T, os.WriteFile(path, []byte(body), 0644))
		args = append(args, path)
	}
	out, err := exec.Command("javac", args...).CombinedOutput()
	require.NoError(r.T, err, "javac failed:\n%s", out)

	classes := map[string][]byte{}
	err = filepath.Walk(outDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, ".class") {
			return err
		}
		rel, err := filepath.Rel(outDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		classes[filepath.ToSlash(rel)] = data
		return nil
	})
	require.NoError(r.T, err)
	return classes
}

// WriteJar packages entries into a jar whose manifest names mainClass, and
// returns its path.
func (r *JavaRunner) WriteJar(entries map[string][]byte, mainClass string) string {
	r.T.Helper()
	path := filepath.Join(r.T.TempDir(), "app.jar")
	f, err := os.Create(path)
	require.NoError(r.T, err)
	zw := zip.NewWriter(f)

	w, err := zw.Create("META-INF/MANIFEST.MF")
	require.NoError(r.T, err)
	_, err = w.Write([]byte("Manifest-Version: 1.0\nMain-Class: " + mainClass + "\n"))
	require.NoError(r.T, err)

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(r.T, err)
		_, err = w.Write(entries[name])
		require.NoError(r.T, err)
	}
	require.NoError(r.T, zw.Close())
	require.NoError(r.T, f.Close())
	return path
}

// RunJar executes java -jar and returns its combined output
func (r *JavaRunner) RunJar(path string) (string, error) {
	r.T.Helper()
	out, err := exec.Command("java", "-jar", path).CombinedOutput()
	return string(out), err
}

// RunClasses writes entries to a directory, runs mainClass from it and
// returns the combined output.
func (r *JavaRunner) RunClasses(entries map[string][]byte, mainClass string) (string, error) {
	r.T.Helper()
	dir := r.T.TempDir()
	for name, data := range entries {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(r.T, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(r.T, os.WriteFile(path, data, 0644))
	}
	out, err := exec.Command("java", "-cp", dir, mainClass).CombinedOutput()
	return string(out), err
}
