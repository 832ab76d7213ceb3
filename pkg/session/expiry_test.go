package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsExpired(t *testing.T) {
	now := epoch

	tests := []struct {
		name      string
		expiresAt time.Time
		expired   bool
	}{
		{"no expiry", time.Time{}, false},
		{"in the past", now.Add(-time.Hour), true},
		{"inside skew", now.Add(59 * time.Second), true},
		{"exactly at skew", now.Add(60 * time.Second), true},
		{"just past skew", now.Add(61 * time.Second), false},
		{"far future", now.Add(time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, IsExpired(now, tt.expiresAt, DefaultSkew))
		})
	}
}

func TestIsIdle(t *testing.T) {
	now := epoch

	assert.False(t, IsIdle(now, now.Add(-time.Hour), 0))
	assert.False(t, IsIdle(now, now.Add(-59*time.Minute), time.Hour))
	assert.True(t, IsIdle(now, now.Add(-time.Hour), time.Hour))
	assert.True(t, IsIdle(now, now.Add(-2*time.Hour), time.Hour))
}
