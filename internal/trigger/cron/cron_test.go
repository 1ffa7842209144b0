package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidInput(t *testing.T) {
	cases := map[string]struct {
		expr     string
		timezone string
	}{
		"empty expression": {expr: ""},
		"bad expression":   {expr: "not a cron"},
		"bad timezone":     {expr: "0 2 * * *", timezone: "Mars/Olympus"},
	}

	for name, tc := range cases {
		if _, err := New(tc.expr, tc.timezone); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNextTick(t *testing.T) {
	c, err := New("0 2 * * *", "UTC")
	require.NoError(t, err)

	from := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	next := c.Next(from)

	assert.Equal(t, time.Date(2026, 8, 2, 2, 0, 0, 0, time.UTC), next)
	assert.True(t, next.After(from))
}

func TestNextTickEveryMinute(t *testing.T) {
	c, err := New("* * * * *", "")
	require.NoError(t, err)

	from := time.Now()
	next := c.Next(from)

	assert.True(t, next.After(from))
	assert.LessOrEqual(t, next.Sub(from), time.Minute+time.Second)
}
