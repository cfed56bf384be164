package scrambler

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/whit3rabbit/jvmmixer/internal/config"
)

// Helper to create a default scrambling config for testing
func createTestConfig() config.ScramblingConfig {
	return config.ScramblingConfig{Mode: "identifier", Length: 5}
}

// Helper to create a scrambler with a fixed seed
func createTestScrambler(t *testing.T, sType ScrambleType, cfg config.ScramblingConfig, taken func(string) bool) *Scrambler {
	t.Helper()
	sc, err := NewScrambler(sType, cfg, rand.New(rand.NewSource(7)), taken)
	if err != nil {
		t.Fatalf("Failed to create scrambler for type %s: %v", sType, err)
	}
	return sc
}

func mustScramble(t *testing.T, sc *Scrambler, name string) string {
	t.Helper()
	out, err := sc.Scramble(name)
	if err != nil {
		t.Fatalf("Scramble(%q) failed: %v", name, err)
	}
	return out
}

func TestScrambleBasic(t *testing.T) {
	cfg := createTestConfig()
	sc := createTestScrambler(t, TypeClass, cfg, nil)

	first := mustScramble(t, sc, "process")
	second := mustScramble(t, sc, "process")
	if first == "process" {
		t.Errorf("name was not scrambled")
	}
	if len(first) < cfg.Length {
		t.Errorf("scrambled name %q is too short: len=%d, expected >= %d", first, len(first), cfg.Length)
	}
	if first != second {
		t.Errorf("scrambled name is not consistent: %q != %q", first, second)
	}

	original, ok := sc.Unscramble(first)
	if !ok || original != "process" {
		t.Errorf("Unscramble(%q) = %q, %v; want process, true", first, original, ok)
	}
}

func TestScrambleUniqueAndGrows(t *testing.T) {
	cfg := config.ScramblingConfig{Mode: "numeric", Length: 2}
	sc := createTestScrambler(t, TypeClass, cfg, nil)

	seen := map[string]string{}
	longest := 0
	for i := 0; i < 60; i++ {
		orig := "f" + strings.Repeat("x", i)
		got := mustScramble(t, sc, orig)
		if prev, dup := seen[got]; dup {
			t.Fatalf("collision: %q and %q both map to %q", prev, orig, got)
		}
		seen[got] = orig
		if !strings.HasPrefix(got, "O") {
			t.Errorf("numeric names start with O, got %q", got)
		}
		if len(got) > longest {
			longest = len(got)
		}
	}
	if longest <= 2 {
		t.Errorf("expected name length to grow past 2 after exhausting the space, longest=%d", longest)
	}
}

func TestScrambleAvoidsTakenNames(t *testing.T) {
	taken := func(name string) bool { return name[0] >= 'a' && name[0] <= 'z' }
	sc := createTestScrambler(t, TypeClass, createTestConfig(), taken)
	for i := 0; i < 20; i++ {
		got := mustScramble(t, sc, strings.Repeat("m", i+1))
		if taken(got) {
			t.Errorf("scrambler returned a taken name %q", got)
		}
	}
}

func TestClassNamesCollideIgnoringCase(t *testing.T) {
	sc := createTestScrambler(t, TypeClass, createTestConfig(), nil)
	a := mustScramble(t, sc, "com/a/One")
	if _, ok := sc.Unscramble(strings.ToUpper(a)); !ok {
		t.Errorf("class reverse lookup should ignore case for %q", a)
	}
}

func TestScrambleIsDeterministicForSeed(t *testing.T) {
	a := createTestScrambler(t, TypeClass, createTestConfig(), nil)
	b := createTestScrambler(t, TypeClass, createTestConfig(), nil)
	for _, name := range []string{"x", "y", "z"} {
		if mustScramble(t, a, name) != mustScramble(t, b, name) {
			t.Errorf("same seed produced different names for %q", name)
		}
	}
}

func TestReservedWords(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"class", true},
		{"goto", true},
		{"CON", true},
		{"Lpt1", true},
		{"main", false},
		{"Qx9", false},
	}
	for _, tt := range tests {
		if got := isReserved(tt.name); got != tt.want {
			t.Errorf("isReserved(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewScramblerRejectsBadInput(t *testing.T) {
	if _, err := NewScrambler(ScrambleType("bogus"), createTestConfig(), rand.New(rand.NewSource(1)), nil); err == nil {
		t.Errorf("expected error for unknown type")
	}
	if _, err := NewScrambler(TypeClass, createTestConfig(), nil, nil); err == nil {
		t.Errorf("expected error for nil random source")
	}
	sc := createTestScrambler(t, TypeClass, config.ScramblingConfig{Mode: "weird", Length: 100}, nil)
	if sc.mode != "identifier" || sc.currentLength != maxIdentifierLen {
		t.Errorf("bad settings not clamped: mode=%s length=%d", sc.mode, sc.currentLength)
	}
}
