// Package scrambler generates random, collision-free JVM identifiers.
package scrambler

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/apex/log"

	"github.com/whit3rabbit/jvmmixer/internal/config"
)

const (
	// Characters for different scramble modes
	firstCharsIdentifier = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	allCharsIdentifier   = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"
	firstCharsHex        = "abcdefABCDEF"
	allCharsHex          = "0123456789abcdefABCDEF"
	firstCharsNumeric    = "O"
	allCharsNumeric      = "0123456789"

	// Limits
	maxIdentifierLen = 16
	maxHexNumericLen = 32
	minScrambleLen   = 2
	maxRegenAttempts = 50
)

// Scrambler hands out scrambled names for one kind of identifier and
// remembers the mapping in both directions.
type Scrambler struct {
	sType         ScrambleType
	caseSensitive bool
	mode          string
	minLength     int
	maxLength     int
	currentLength int
	random        *rand.Rand
	taken         func(name string) bool

	scrambleMap  map[string]string // original -> scrambled
	rScrambleMap map[string]string // scrambled (lowercase for classes) -> original

	mu sync.Mutex
}

// NewScrambler creates a scrambler for sType. random is the run RNG; taken,
// when non-nil, reports names that already exist on the classpath.
func NewScrambler(sType ScrambleType, cfg config.ScramblingConfig, random *rand.Rand, taken func(string) bool) (*Scrambler, error) {
	if random == nil {
		return nil, fmt.Errorf("scrambler %s: nil random source", sType)
	}
	s := &Scrambler{
		sType:        sType,
		random:       random,
		taken:        taken,
		scrambleMap:  make(map[string]string),
		rScrambleMap: make(map[string]string),
	}

	switch sType {
	case TypeClass:
		// archives are unpacked onto case-insensitive file systems
		s.caseSensitive = false
	default:
		return nil, fmt.Errorf("unknown scramble type: %s", sType)
	}

	s.mode = strings.ToLower(cfg.Mode)
	if s.mode == "" {
		s.mode = "identifier"
	}
	s.minLength = minScrambleLen
	s.maxLength = maxIdentifierLen
	switch s.mode {
	case "identifier":
	case "hexa", "numeric":
		s.maxLength = maxHexNumericLen
	default:
		log.Warnf("invalid scrambling mode '%s', using 'identifier'", cfg.Mode)
		s.mode = "identifier"
	}
	s.currentLength = cfg.Length
	if s.currentLength < s.minLength {
		s.currentLength = s.minLength
	}
	if s.currentLength > s.maxLength {
		s.currentLength = s.maxLength
	}
	return s, nil
}

// Type returns the identifier kind the scrambler serves.
func (s *Scrambler) Type() ScrambleType {
	return s.sType
}

// Scramble returns the scrambled name for original, generating one on first
// use. Generated names never collide with each other, with reserved words or
// with names the taken callback reports.
func (s *Scrambler) Scramble(original string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scrambled, exists := s.scrambleMap[original]; exists {
		return scrambled, nil
	}

	for attempt := 0; attempt < maxRegenAttempts; attempt++ {
		candidate := s.generateScrambledName()
		key := s.reverseKey(candidate)
		if isReserved(candidate) {
			continue
		}
		_, collides := s.rScrambleMap[key]
		if !collides && s.taken != nil {
			collides = s.taken(candidate)
		}
		if collides {
			if attempt > 5 && s.currentLength < s.maxLength {
				s.currentLength++
			}
			continue
		}
		s.scrambleMap[original] = candidate
		s.rScrambleMap[key] = original
		return candidate, nil
	}
	return "", fmt.Errorf("failed to generate unique %s name for '%s' after %d attempts", s.sType, original, maxRegenAttempts)
}

// Unscramble looks up the original name given a scrambled name.
func (s *Scrambler) Unscramble(scrambled string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	original, found := s.rScrambleMap[s.reverseKey(scrambled)]
	return original, found
}

func (s *Scrambler) reverseKey(name string) string {
	if s.caseSensitive {
		return name
	}
	return strings.ToLower(name)
}

func (s *Scrambler) generateScrambledName() string {
	var firstChars, allChars string
	switch s.mode {
	case "numeric":
		firstChars = firstCharsNumeric
		allChars = allCharsNumeric
	case "hexa":
		firstChars = firstCharsHex
		allChars = allCharsHex
	default:
		firstChars = firstCharsIdentifier
		allChars = allCharsIdentifier
	}
	length := s.currentLength
	sb := strings.Builder{}
	sb.Grow(length)
	sb.WriteByte(firstChars[s.random.Intn(len(firstChars))])
	for i := 1; i < length; i++ {
		sb.WriteByte(allChars[s.random.Intn(len(allChars))])
	}
	return sb.String()
}
