package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/jvmmixer/internal/config"
)

func TestSeedFlagOverrides(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantSeed   int64
		wantPhrase string
	}{
		{"no flags", nil, 3, "from-file"},
		{"seed clears file phrase", []string{"--seed=42"}, 42, ""},
		{"phrase flag wins", []string{"--seed=42", "--seed-phrase=orchid"}, 42, "orchid"},
		{"phrase flag only", []string{"--seed-phrase=orchid"}, 3, "orchid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cobra.Command{Use: "jar"}
			c.Flags().Int64Var(&seed, "seed", 0, "")
			c.Flags().StringVar(&seedPhrase, "seed-phrase", "", "")
			require.NoError(t, c.ParseFlags(tt.args))

			cfg := config.DefaultConfig()
			cfg.Seed = 3
			cfg.SeedPhrase = "from-file"
			applyFlagOverrides(cfg, c)
			assert.Equal(t, tt.wantSeed, cfg.Seed)
			assert.Equal(t, tt.wantPhrase, cfg.SeedPhrase)
		})
	}
}
