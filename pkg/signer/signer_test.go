package signer

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign(t *testing.T) {
	tests := []struct {
		name      string
		timestamp string
		secret    string
		want      string
	}{
		{
			name:      "short secret",
			timestamp: "1000",
			secret:    "S",
			want:      "parZvuE5BxlrVfDwDa9pF7CUj%2BrQGc1KE0pnv3R%2BYqg%3D",
		},
		{
			name:      "millisecond timestamp",
			timestamp: "1577808000000",
			secret:    "SEC123",
			want:      "McRMJV%2BWFOPVj0qSjaUfnYMKPYIQanf39T4QZX8qcQI%3D",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sign(tt.timestamp, tt.secret)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Sign(tt.timestamp, tt.secret), "signature must be deterministic")
		})
	}
}

func TestSignMillisMatchesSign(t *testing.T) {
	assert.Equal(t, Sign("1000", "S"), SignMillis(1000, "S"))
}

func TestSignDecodesToRaw(t *testing.T) {
	decoded, err := url.QueryUnescape(Sign("1000", "S"))
	require.NoError(t, err)
	assert.Equal(t, "parZvuE5BxlrVfDwDa9pF7CUj+rQGc1KE0pnv3R+Yqg=", decoded)
	assert.Equal(t, decoded, RawSign("1000", "S"))
}
