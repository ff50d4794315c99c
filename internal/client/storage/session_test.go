package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_AccessValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	s := &Session{AccessToken: "a", AccessExpiresAt: now.Add(time.Minute)}
	assert.True(t, s.AccessValid(now))
	assert.False(t, s.AccessValid(now.Add(time.Minute)))

	assert.False(t, (&Session{AccessExpiresAt: now.Add(time.Hour)}).AccessValid(now))
}

func TestSession_RefreshValid(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, (&Session{}).RefreshValid(now))
	assert.True(t, (&Session{RefreshToken: "r"}).RefreshValid(now), "unknown expiry")
	assert.True(t, (&Session{RefreshToken: "r", RefreshExpiresAt: now.Add(time.Hour)}).RefreshValid(now))
	assert.False(t, (&Session{RefreshToken: "r", RefreshExpiresAt: now.Add(-time.Hour)}).RefreshValid(now))
}
