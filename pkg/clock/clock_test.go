package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixed(t *testing.T) {
	start := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	c := NewFixed(start)

	assert.Equal(t, start, c.Now())

	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestToday(t *testing.T) {
	c := NewFixed(time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Today(c, nil))

	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)
	// 23:30 UTC is already the next morning in Manila
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), Today(c, manila))
}

func TestReal(t *testing.T) {
	before := time.Now()
	now := Real{}.Now()
	assert.False(t, now.Before(before))
}
