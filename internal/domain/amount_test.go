package domain

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSPR(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"1", 1_000_000_000, false},
		{"1.5", 1_500_000_000, false},
		{"0.000000001", 1, false},
		{"0.0000000001", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCSPR(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Uint64())
		})
	}
}

func TestFormatCSPR(t *testing.T) {
	assert.Equal(t, "0.01001", FormatCSPR(uint256.NewInt(10_010_000)))
	assert.Equal(t, "2", FormatCSPR(uint256.NewInt(2_000_000_000)))
	assert.Equal(t, "0", FormatCSPR(nil))
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("10010000")
	require.NoError(t, err)
	assert.Equal(t, uint64(10_010_000), v.Uint64())

	v, err = ParseAmount("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = ParseAmount("-5")
	assert.Error(t, err)
}
