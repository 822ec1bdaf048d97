package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()
	assert.Len(t, a, Length)
	assert.True(t, Valid(a), "New() = %q", a)
	assert.NotEqual(t, a, b)
}

func TestNamed_Deterministic(t *testing.T) {
	assert.Equal(t, Named("commodity:USD"), Named("commodity:USD"))
	assert.NotEqual(t, Named("commodity:USD"), Named("commodity:EUR"))
	assert.True(t, Valid(Named("commodity:USD")))
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0123456789abcdef0123456789abcdef", true},
		{"0123456789ABCDEF0123456789ABCDEF", false},
		{"0123456789abcdef0123456789abcde", false},
		{"0123456789abcdef0123456789abcdeg", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.in), "Valid(%q)", tt.in)
	}
}

func TestParse(t *testing.T) {
	got, err := Parse("6BA7B812-9DAD-11D1-80B4-00C04FD430C8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b8129dad11d180b400c04fd430c8", got)

	got, err = Parse(" 6ba7b8129dad11d180b400c04fd430c8 ")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b8129dad11d180b400c04fd430c8", got)

	_, err = Parse("nope")
	require.Error(t, err)
}

func TestIsBookDatabase(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"6ba7b8129dad11d180b400c04fd430c8", true},
		{"6ba7b8129dad11d180b400c04fd430c8.db", true},
		{"books.db", false},
		{"6ba7b8129dad11d180b400c04fd430c8.prefs.yaml", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsBookDatabase(tt.name), "IsBookDatabase(%q)", tt.name)
	}
}
