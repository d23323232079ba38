package generator

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// maxAttempts bounds regeneration when a draw misses a required character class
const maxAttempts = 64

// ByteSource supplies secure random bytes. crypto.CryptoService satisfies it.
type ByteSource interface {
	RandomBytes(n int) ([]byte, error)
}

// PasswordOptions configures password generation
type PasswordOptions struct {
	Length           int
	IncludeLowercase bool
	IncludeUppercase bool
	IncludeNumbers   bool
	IncludeSymbols   bool
	ExcludeSimilar   bool
	ExcludeAmbiguous bool
}

// DefaultOptions returns sensible default password options
func DefaultOptions() PasswordOptions {
	return PasswordOptions{
		Length:           16,
		IncludeLowercase: true,
		IncludeUppercase: true,
		IncludeNumbers:   true,
		IncludeSymbols:   true,
		ExcludeSimilar:   true,
		ExcludeAmbiguous: false,
	}
}

// Character sets
const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numbers   = "0123456789"
	symbols   = "!@#$%^&*()-_=+[]{}|;:,./<>?~"
	similar   = "il1Lo0O"
	ambiguous = "`{}[]()|\\/'\"`~,;:.<>"
)

// Generator draws passwords from a ByteSource
type Generator struct {
	source ByteSource
}

// New creates a generator over source
func New(source ByteSource) *Generator {
	return &Generator{source: source}
}

// GeneratePassword creates a random password according to options. Every selected class
// appears at least once.
func (g *Generator) GeneratePassword(options PasswordOptions) (string, error) {
	if options.Length <= 0 {
		return "", errors.New("password length must be positive")
	}

	classes := characterClasses(options)
	if len(classes) == 0 {
		return "", errors.New("no character set selected")
	}
	if options.Length < len(classes) {
		return "", errors.Errorf("password length must be at least %d to include every selected class", len(classes))
	}

	var chars []rune
	for _, class := range classes {
		chars = append(chars, class...)
	}

	result := make([]rune, options.Length)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		for i := range result {
			idx, err := g.randomInt(len(chars))
			if err != nil {
				return "", err
			}
			result[i] = chars[idx]
		}
		if meetsRequirements(result, classes) {
			return string(result), nil
		}
	}

	return "", errors.New("could not satisfy character class requirements")
}

// characterClasses returns the selected character sets after exclusions
func characterClasses(options PasswordOptions) [][]rune {
	var classes [][]rune
	add := func(set, exclude string) {
		var class []rune
		for _, c := range set {
			if exclude != "" && containsRune(exclude, c) {
				continue
			}
			class = append(class, c)
		}
		if len(class) > 0 {
			classes = append(classes, class)
		}
	}

	var excludeSimilar string
	if options.ExcludeSimilar {
		excludeSimilar = similar
	}
	if options.IncludeLowercase {
		add(lowercase, excludeSimilar)
	}
	if options.IncludeUppercase {
		add(uppercase, excludeSimilar)
	}
	if options.IncludeNumbers {
		add(numbers, excludeSimilar)
	}
	if options.IncludeSymbols {
		var excludeAmbiguous string
		if options.ExcludeAmbiguous {
			excludeAmbiguous = ambiguous
		}
		add(symbols, excludeAmbiguous)
	}
	return classes
}

// meetsRequirements checks that password contains a character from every class
func meetsRequirements(password []rune, classes [][]rune) bool {
	for _, class := range classes {
		found := false
		for _, c := range password {
			if containsRune(string(class), c) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// randomInt returns a uniform integer in [0, max) by rejection sampling 32-bit draws
func (g *Generator) randomInt(max int) (int, error) {
	if max <= 0 {
		return 0, errors.New("max must be positive")
	}

	limit := ^uint32(0) - ^uint32(0)%uint32(max)
	for {
		b, err := g.source.RandomBytes(4)
		if err != nil {
			return 0, err
		}
		n := binary.BigEndian.Uint32(b)
		if n < limit {
			return int(n % uint32(max)), nil
		}
	}
}

// containsRune checks if a string contains a specific rune
func containsRune(s string, r rune) bool {
	for _, c := range s {
		if c == r {
			return true
		}
	}
	return false
}
