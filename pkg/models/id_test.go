package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical", "8f14e45f-ceea-467f-a0c6-55a2d3e9b0a1", "8f14e45f-ceea-467f-a0c6-55a2d3e9b0a1"},
		{"upper case", "8F14E45F-CEEA-467F-A0C6-55A2D3E9B0A1", "8f14e45f-ceea-467f-a0c6-55a2d3e9b0a1"},
		{"no hyphens", "8f14e45fceea467fa0c655a2d3e9b0a1", "8f14e45f-ceea-467f-a0c6-55a2d3e9b0a1"},
		{"surrounding space", "  8f14e45f-ceea-467f-a0c6-55a2d3e9b0a1 ", "8f14e45f-ceea-467f-a0c6-55a2d3e9b0a1"},
		{"legacy key", "8f14e45fceea467fa0c655a2", "8f14e45f-ceea-467f-a0c6-55a200000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalID_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not-an-id", "8f14e45fceea467fa0c655a", "zz14e45fceea467fa0c655a2"} {
		t.Run(in, func(t *testing.T) {
			_, err := CanonicalID(in)
			require.Error(t, err)

			var convErr *IdentifierConversionError
			assert.True(t, errors.As(err, &convErr), "want IdentifierConversionError, got %T", err)
		})
	}
}

func TestNewID_IsCanonical(t *testing.T) {
	id := NewID()
	got, err := CanonicalID(id)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Len(t, id, 36)
}
