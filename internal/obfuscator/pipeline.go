package obfuscator

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/whit3rabbit/jvmmixer/internal/archive"
	"github.com/whit3rabbit/jvmmixer/internal/classfile"
	"github.com/whit3rabbit/jvmmixer/internal/classpath"
	"github.com/whit3rabbit/jvmmixer/internal/transformer"
)

// Report summarizes one run.
type Report struct {
	Input  string
	Output string
	Seed   int64

	Classes      int
	HardExcluded int
	Resources    int
	Unparseable  int
	Libraries    int // classes loaded from library archives

	Indirection    transformer.IndirectionStats
	BootstrapClass string   // empty when no call site was rewritten
	Degraded       []string // classes written without a StackMapTable

	Entries int   // archive entries written, decoys included
	Bytes   int64 // size of the output archive
	Crasher bool
}

// ObfuscateJar reads the archive at inPath, transforms it and writes the
// result to outPath. The output is written to a temporary file next to
// outPath and renamed into place only when every stage succeeded.
func (octx *ObfuscationContext) ObfuscateJar(inPath, outPath string) (report *Report, err error) {
	defer recoverInvariant(&err)

	report = &Report{Input: inPath, Output: outPath}
	stats, err := classpath.LoadInputJar(inPath, octx.Config.HardExclusions, octx.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", inPath, err)
	}
	if err := octx.prepare(report, stats); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".jvmmixer-*.jar")
	if err != nil {
		return nil, fmt.Errorf("failed to create output file in %s: %w", filepath.Dir(outPath), err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := octx.writeArchive(tmp, report); err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), outPath); err != nil {
		return nil, fmt.Errorf("failed to move output into place at %s: %w", outPath, err)
	}
	committed = true

	log.WithFields(log.Fields{
		"output":  outPath,
		"entries": report.Entries,
		"size":    humanize.Bytes(uint64(report.Bytes)),
	}).Info("wrote obfuscated archive")
	return report, nil
}

// ObfuscateBytes is ObfuscateJar for archives held in memory.
func (octx *ObfuscationContext) ObfuscateBytes(input []byte) (out []byte, report *Report, err error) {
	defer recoverInvariant(&err)

	report = &Report{Input: "<memory>", Output: "<memory>"}
	stats, err := classpath.LoadInputBytes(input, octx.Config.HardExclusions, octx.registry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load input: %w", err)
	}
	if err := octx.prepare(report, stats); err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := octx.writeArchive(&buf, report); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), report, nil
}

func recoverInvariant(err *error) {
	if r := recover(); r != nil {
		ie, ok := r.(*transformer.InvariantError)
		if !ok {
			panic(r)
		}
		log.WithFields(log.Fields{"class": ie.Class, "method": ie.Method}).Error("invariant violated, aborting")
		*err = fmt.Errorf("obfuscation aborted: %w", ie)
	}
}

// prepare loads libraries and runs every enabled transformer.
func (octx *ObfuscationContext) prepare(report *Report, stats *classpath.LoadStats) error {
	report.Seed = octx.Seed
	report.Classes = stats.Classes
	report.HardExcluded = stats.HardExcluded
	report.Resources = stats.Resources
	report.Unparseable = stats.Unparseable

	libs, err := classpath.LoadLibraries(octx.Config.Libraries, octx.registry)
	if err != nil {
		return fmt.Errorf("failed to load libraries: %w", err)
	}
	report.Libraries = libs

	for _, t := range octx.transformers() {
		if !t.Enabled() {
			log.WithField("transformer", t.Name()).Debug("transformer disabled")
			continue
		}
		if err := octx.runTransformer(t); err != nil {
			return fmt.Errorf("transformer %s failed: %w", t.Name(), err)
		}
		if ind, ok := t.(*transformer.IndirectionTransformer); ok {
			report.Indirection = ind.Stats()
		}
	}
	if octx.boot.Used() {
		report.BootstrapClass = octx.boot.Class().Name
	}
	return nil
}

func (octx *ObfuscationContext) runTransformer(t transformer.Transformer) error {
	classes, _, _ := octx.registry.Stats()
	if octx.Silent {
		return t.Process(nil)
	}

	p := mpb.New(mpb.WithWidth(60), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(int64(classes),
		mpb.PrependDecorators(
			decor.Name(t.Name(), decor.WC{W: len(t.Name()) + 1, C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
		),
	)
	err := t.Process(func(string) { bar.Increment() })
	// Classes added during the pass are not visited; close the bar either way.
	bar.SetTotal(-1, true)
	p.Wait()
	return err
}

// writeArchive writes pass-through resources, then every emitted class.
func (octx *ObfuscationContext) writeArchive(w io.Writer, report *Report) error {
	cfg := octx.Config
	counter := &countingWriter{w: w}
	aw, err := archive.NewWriter(counter, cfg.Archive.Compression)
	if err != nil {
		return err
	}
	var crasher *archive.Crasher
	if cfg.Obfuscation.Crasher.Enabled {
		crasher = archive.NewCrasher(aw, cfg.Archive.CommentFiller)
		report.Crasher = true
	}

	for _, r := range octx.registry.PassThrough() {
		if crasher != nil {
			err = crasher.WriteResource(r.Path, r.Data)
		} else {
			err = aw.Add(archive.Entry{Name: r.Path, Data: r.Data})
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", r.Path, err)
		}
	}

	for _, c := range octx.registry.Classes() {
		excluded := octx.root.Class(c.Name)
		if cfg.Obfuscation.Shuffle.Enabled && !excluded {
			transformer.ShuffleMembers(c, octx.random)
		}
		data, degraded, err := encodeClass(c)
		if err != nil {
			return fmt.Errorf("failed to encode class %s: %w", c.Name, err)
		}
		if degraded {
			report.Degraded = append(report.Degraded, c.Name)
		}

		name := c.Name + ".class"
		if crasher != nil {
			err = crasher.WriteClass(name, data, excluded)
		} else {
			err = aw.Add(archive.Entry{Name: name, Data: data})
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if crasher != nil {
		if err := crasher.Finish(); err != nil {
			return fmt.Errorf("failed to finish archive: %w", err)
		}
	}
	if err := aw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	report.Entries = aw.Entries()
	report.Bytes = counter.n
	return nil
}

// encodeClass writes c with its relocated stack map frames, falling back to
// dropping them when that fails.
func encodeClass(c *classfile.Class) ([]byte, bool, error) {
	data, err := c.Encode(classfile.Full)
	if err == nil {
		return data, false, nil
	}
	log.WithFields(log.Fields{"class": c.Name, "err": err}).Warn("encoding failed, retrying without stack map frames")
	data, err = c.Encode(classfile.Reduced)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
