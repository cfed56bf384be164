package classpath

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"

	"github.com/whit3rabbit/jvmmixer/internal/classfile"
)

// LoadStats summarizes one input archive.
type LoadStats struct {
	Classes      int // parsed and registered for output
	HardExcluded int // parsed for the classpath, written verbatim
	Resources    int // non-class entries
	Unparseable  int // class entries that failed to parse, written verbatim
}

// LoadInputJar reads every entry of the archive at path into reg. Class
// entries whose path starts with one of hardExclusions are kept as raw bytes
// for output but still parsed onto the classpath.
func LoadInputJar(path string, hardExclusions []string, reg *Registry) (*LoadStats, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open input archive %s", path)
	}
	defer zr.Close()
	return loadInput(&zr.Reader, path, hardExclusions, reg)
}

// LoadInputBytes is LoadInputJar for an archive held in memory.
func LoadInputBytes(data []byte, hardExclusions []string, reg *Registry) (*LoadStats, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "open input archive")
	}
	return loadInput(zr, "<memory>", hardExclusions, reg)
}

func loadInput(zr *zip.Reader, source string, hardExclusions []string, reg *Registry) (*LoadStats, error) {
	prefixes := trimPrefixes(hardExclusions)
	stats := &LoadStats{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s from %s", f.Name, source)
		}
		if !isClassEntry(f.Name) || strings.HasSuffix(f.Name, "module-info.class") {
			reg.AddPassThrough(f.Name, data)
			stats.Resources++
			continue
		}

		c, err := classfile.Parse(data)
		if err != nil {
			log.WithFields(log.Fields{"entry": f.Name, "err": err}).Warn("class entry could not be parsed, copying it verbatim")
			reg.AddPassThrough(f.Name, data)
			stats.Unparseable++
			continue
		}
		if hasAnyPrefix(f.Name, prefixes) {
			reg.AddPassThrough(f.Name, data)
			reg.AddClassPath(c)
			stats.HardExcluded++
			continue
		}
		reg.AddClass(c)
		stats.Classes++
	}
	log.WithFields(log.Fields{
		"archive":       source,
		"classes":       stats.Classes,
		"hard_excluded": stats.HardExcluded,
		"resources":     stats.Resources,
	}).Debug("loaded input archive")
	return stats, nil
}

// LoadLibraries parses the class entries of every archive in paths onto the
// classpath. Unparseable library classes are skipped.
func LoadLibraries(paths []string, reg *Registry) (int, error) {
	total := 0
	for _, path := range paths {
		n, err := loadLibrary(path, reg)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func loadLibrary(path string, reg *Registry) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open library %s", path)
	}
	defer zr.Close()

	n := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isClassEntry(f.Name) {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return n, errors.Wrapf(err, "read %s from %s", f.Name, path)
		}
		c, err := classfile.Parse(data)
		if err != nil {
			log.WithFields(log.Fields{"library": path, "entry": f.Name, "err": err}).Debug("skipping library class")
			continue
		}
		reg.AddClassPath(c)
		n++
	}
	log.WithFields(log.Fields{"library": path, "classes": n}).Debug("loaded library")
	return n, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func isClassEntry(name string) bool {
	return strings.HasSuffix(name, ".class")
}

func trimPrefixes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
