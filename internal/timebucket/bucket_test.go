package timebucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromDerivesAllLevels(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)
	b := From(ts)
	assert.Equal(t, "2026", b[3].Key())
	assert.Equal(t, "2026-03", b[2].Key())
	assert.Equal(t, "2026-03-05", b[1].Key())
	assert.Equal(t, "2026-03-05T14", b[0].Key())
}

func TestParentChain(t *testing.T) {
	hour := Bucket{Granularity: Hour, Year: 2026, Month: 3, Day: 5, Hour: 14}
	day, ok := hour.Parent()
	assert.True(t, ok)
	assert.Equal(t, "2026-03-05", day.Key())

	month, ok := day.Parent()
	assert.True(t, ok)
	assert.Equal(t, "2026-03", month.Key())

	year, ok := month.Parent()
	assert.True(t, ok)
	assert.Equal(t, "2026", year.Key())

	_, ok = year.Parent()
	assert.False(t, ok)
}
