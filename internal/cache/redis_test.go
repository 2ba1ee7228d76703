package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClaimTTL_DefaultsWhenNonPositive(t *testing.T) {
	require.Equal(t, defaultClaimTTL, claimTTL(0))
	require.Equal(t, defaultClaimTTL, claimTTL(-time.Second))
	require.Equal(t, time.Hour, claimTTL(time.Hour))
}

func TestFormatMillis(t *testing.T) {
	require.Equal(t, "1500", formatMillis(1500*time.Millisecond))
	require.Equal(t, "60000", formatMillis(time.Minute))

	// PX rejects non-positive values.
	require.Equal(t, "1", formatMillis(0))
	require.Equal(t, "1", formatMillis(500*time.Microsecond))
}

func TestNewRedisClient_RequiresAddress(t *testing.T) {
	_, err := NewRedisClient(RedisConfig{})
	require.Error(t, err)
}
