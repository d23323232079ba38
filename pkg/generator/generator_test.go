package generator

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type randSource struct{}

func (randSource) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

type failingSource struct{}

func (failingSource) RandomBytes(int) ([]byte, error) {
	return nil, errors.New("no entropy")
}

func TestGeneratePassword(t *testing.T) {
	t.Parallel()
	g := New(randSource{})

	tests := []struct {
		name    string
		options PasswordOptions
		allowed string
	}{
		{"defaults", DefaultOptions(), ""},
		{"digits only", PasswordOptions{Length: 12, IncludeNumbers: true}, numbers},
		{"letters without similar", PasswordOptions{Length: 40, IncludeLowercase: true, IncludeUppercase: true, ExcludeSimilar: true}, ""},
		{"symbols without ambiguous", PasswordOptions{Length: 20, IncludeSymbols: true, ExcludeAmbiguous: true}, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pw, err := g.GeneratePassword(tt.options)
			require.NoError(t, err)
			assert.Len(t, []rune(pw), tt.options.Length)

			for _, c := range pw {
				if tt.allowed != "" {
					assert.True(t, strings.ContainsRune(tt.allowed, c), "unexpected %q", c)
				}
				if tt.options.ExcludeSimilar {
					assert.False(t, strings.ContainsRune(similar, c), "similar %q", c)
				}
				if tt.options.ExcludeAmbiguous {
					assert.False(t, strings.ContainsRune(ambiguous, c), "ambiguous %q", c)
				}
			}
		})
	}
}

func TestGeneratePassword_ContainsEveryClass(t *testing.T) {
	t.Parallel()
	g := New(randSource{})
	opts := PasswordOptions{Length: 4, IncludeLowercase: true, IncludeUppercase: true, IncludeNumbers: true, IncludeSymbols: true}

	for i := 0; i < 50; i++ {
		pw, err := g.GeneratePassword(opts)
		require.NoError(t, err)
		assert.True(t, strings.ContainsAny(pw, lowercase))
		assert.True(t, strings.ContainsAny(pw, uppercase))
		assert.True(t, strings.ContainsAny(pw, numbers))
		assert.True(t, strings.ContainsAny(pw, symbols))
	}
}

func TestGeneratePassword_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(randSource{}).GeneratePassword(PasswordOptions{Length: 0, IncludeNumbers: true})
	assert.Error(t, err)

	_, err = New(randSource{}).GeneratePassword(PasswordOptions{Length: 8})
	assert.Error(t, err)

	_, err = New(randSource{}).GeneratePassword(PasswordOptions{Length: 2, IncludeLowercase: true, IncludeUppercase: true, IncludeNumbers: true})
	assert.Error(t, err)

	_, err = New(failingSource{}).GeneratePassword(DefaultOptions())
	assert.EqualError(t, err, "no entropy")
}
