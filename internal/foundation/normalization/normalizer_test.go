package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend string

const (
	backendFile   backend = "file"
	backendSQLite backend = "sqlite"
)

func newBackendNormalizer() *Normalizer[backend] {
	return NewNormalizer("staleness backend", map[string]backend{
		"file":   backendFile,
		"sqlite": backendSQLite,
	}, backendFile).WithAliases(map[string]backend{"sqlite3": backendSQLite})
}

func TestNormalize(t *testing.T) {
	n := newBackendNormalizer()

	tests := []struct {
		input    string
		expected backend
	}{
		{"file", backendFile},
		{"  SQLITE ", backendSQLite},
		{"sqlite3", backendSQLite},
		{"", backendFile},
		{"postgres", backendFile},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Normalize(tt.input))
		})
	}
}

func TestParse(t *testing.T) {
	n := newBackendNormalizer()

	v, err := n.Parse("")
	require.NoError(t, err)
	assert.Equal(t, backendFile, v)

	v, err = n.Parse("SQLite3")
	require.NoError(t, err)
	assert.Equal(t, backendSQLite, v)

	_, err = n.Parse("postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "staleness backend")
	assert.Contains(t, err.Error(), "[file sqlite]")
}

func TestValidKeysExcludeAliases(t *testing.T) {
	assert.Equal(t, []string{"file", "sqlite"}, newBackendNormalizer().ValidKeys())
}
