// Package obfuscator orchestrates the overall process and holds shared context.
package obfuscator

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/twmb/murmur3"

	"github.com/whit3rabbit/jvmmixer/internal/classpath"
	"github.com/whit3rabbit/jvmmixer/internal/config"
	"github.com/whit3rabbit/jvmmixer/internal/exclusion"
	"github.com/whit3rabbit/jvmmixer/internal/scrambler"
	"github.com/whit3rabbit/jvmmixer/internal/transformer"
)

// ObfuscationContext holds the state shared by every stage of one run: the
// configuration, the run's single random source, the class registry and the
// generated bootstrap class.
type ObfuscationContext struct {
	Config     *config.Config
	Scramblers map[scrambler.ScrambleType]*scrambler.Scrambler
	Seed       int64
	Silent     bool // Inherited from config for convenience

	random   *rand.Rand
	registry *classpath.Registry
	root     *exclusion.Set
	boot     *transformer.BootstrapGenerator
}

// NewObfuscationContext creates a new context and initializes scramblers based on config.
func NewObfuscationContext(cfg *config.Config) (*ObfuscationContext, error) {
	seed := seedFrom(cfg)
	ctx := &ObfuscationContext{
		Config:     cfg,
		Scramblers: make(map[scrambler.ScrambleType]*scrambler.Scrambler),
		Seed:       seed,
		Silent:     cfg.Silent,
		random:     rand.New(rand.NewSource(seed)),
		registry:   classpath.NewRegistry(),
		root:       exclusion.NewSet(cfg.Exclusions),
	}

	// The class scrambler draws from the run RNG and avoids names on the classpath
	s, err := scrambler.NewScrambler(scrambler.TypeClass, cfg.Obfuscation.Scrambling, ctx.random, ctx.registry.HasClass)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scrambler for type %s: %w", scrambler.TypeClass, err)
	}
	ctx.Scramblers[scrambler.TypeClass] = s
	ctx.boot = transformer.NewBootstrapGenerator(ctx.registry, ctx.Scramblers[scrambler.TypeClass])

	log.WithFields(log.Fields{"seed": seed, "root_exclusions": ctx.root.Len()}).Debug("created obfuscation context")
	return ctx, nil
}

// seedFrom picks the run seed: a seed phrase is hashed, an explicit seed is
// used as is, and otherwise the clock decides.
func seedFrom(cfg *config.Config) int64 {
	if cfg.SeedPhrase != "" {
		if n, err := strconv.ParseInt(cfg.SeedPhrase, 10, 64); err == nil {
			return n
		}
		return int64(murmur3.Sum64([]byte(cfg.SeedPhrase)))
	}
	if cfg.Seed != 0 {
		return cfg.Seed
	}
	return time.Now().UnixNano()
}

// --- Context Interface Implementation ---

// GetConfig returns the configuration from the context.
func (octx *ObfuscationContext) GetConfig() *config.Config {
	return octx.Config
}

// Registry returns the run's class registry.
func (octx *ObfuscationContext) Registry() *classpath.Registry {
	return octx.registry
}

// Rand returns the run's random source.
func (octx *ObfuscationContext) Rand() *rand.Rand {
	return octx.random
}

// RootExclusions returns the exclusion list every transform honors.
func (octx *ObfuscationContext) RootExclusions() *exclusion.Set {
	return octx.root
}

// Bootstrap returns the generator of the run's bootstrap class.
func (octx *ObfuscationContext) Bootstrap() *transformer.BootstrapGenerator {
	return octx.boot
}

// GetScrambler returns the scrambler for the given type.
func (octx *ObfuscationContext) GetScrambler(sType scrambler.ScrambleType) *scrambler.Scrambler {
	return octx.Scramblers[sType]
}

// transformers returns the passes in the order they run.
func (octx *ObfuscationContext) transformers() []transformer.Transformer {
	return []transformer.Transformer{
		transformer.NewIndirectionTransformer(octx),
	}
}
