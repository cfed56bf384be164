// Package api provides the public API for using the JVM obfuscator as a library.
//
// This package allows users to obfuscate JAR archives programmatically using
// the same pipeline available in the command-line interface.
//
// Basic usage example:
//
//	obf, err := api.NewObfuscator(api.Options{ConfigPath: "config.yaml"})
//	if err != nil {
//	    log.Fatalf("Failed to create obfuscator: %v", err)
//	}
//
//	report, err := obf.ObfuscateJar("app.jar", "app-obf.jar")
//	if err != nil {
//	    log.Fatalf("Failed to obfuscate archive: %v", err)
//	}
//
//	fmt.Println(report.Indirection.CallSites, "call sites rewritten")
package api

import (
	"fmt"
	"unicode/utf16"

	"github.com/apex/log"

	"github.com/whit3rabbit/jvmmixer/internal/cipher"
	"github.com/whit3rabbit/jvmmixer/internal/config"
	"github.com/whit3rabbit/jvmmixer/internal/obfuscator"
)

// Report summarizes one obfuscation run.
type Report = obfuscator.Report

// Obfuscator runs the obfuscation pipeline with a fixed configuration. Each
// call works on a fresh context, so one Obfuscator can process many archives.
type Obfuscator struct {
	// Config holds the configuration settings for obfuscation
	Config *config.Config
}

// Options represents configuration options for creating a new Obfuscator instance.
type Options struct {
	// ConfigPath is the path to a YAML configuration file
	// If empty, default configuration will be used
	ConfigPath string

	// Silent suppresses informational messages and the progress bar
	Silent bool

	// Seed fixes the random source when non-zero, overriding the config file
	Seed int64

	// Crasher enables the anti-tooling archive layout when set
	Crasher *bool

	// Libraries are extra archives used for type resolution only
	Libraries []string
}

// NewObfuscator creates a new Obfuscator instance using the provided options.
//
// Returns an error if the configuration cannot be loaded or is invalid.
func NewObfuscator(options Options) (*Obfuscator, error) {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if options.Silent {
		cfg.Silent = true
	}
	if options.Seed != 0 {
		cfg.Seed = options.Seed
		cfg.SeedPhrase = ""
	}
	if options.Crasher != nil {
		cfg.Obfuscation.Crasher.Enabled = *options.Crasher
	}
	cfg.Libraries = append(cfg.Libraries, options.Libraries...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	// Progress lines are logged at info level.
	if cfg.Silent {
		log.SetLevel(log.WarnLevel)
	}
	return &Obfuscator{Config: cfg}, nil
}

func (o *Obfuscator) context() (*obfuscator.ObfuscationContext, error) {
	octx, err := obfuscator.NewObfuscationContext(o.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create obfuscation context: %w", err)
	}
	return octx, nil
}

// ObfuscateJar obfuscates the archive at inputPath and writes the result to
// outputPath. Nothing is written when an error is returned.
func (o *Obfuscator) ObfuscateJar(inputPath, outputPath string) (*Report, error) {
	octx, err := o.context()
	if err != nil {
		return nil, err
	}
	return octx.ObfuscateJar(inputPath, outputPath)
}

// ObfuscateBytes obfuscates an archive held in memory.
func (o *Obfuscator) ObfuscateBytes(data []byte) ([]byte, *Report, error) {
	octx, err := o.context()
	if err != nil {
		return nil, nil, err
	}
	return octx.ObfuscateBytes(data)
}

// DecryptIdentifier recovers an owner, name or descriptor stored at a call
// site inside method of class. Applying it to plain text encrypts instead.
func DecryptIdentifier(class, method, text string) string {
	keys := cipher.NewKeys(utf16.Encode([]rune(class)), utf16.Encode([]rune(method)))
	return string(utf16.Decode(keys.Apply(utf16.Encode([]rune(text)))))
}
