package tstamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToInstant_TimeValue(t *testing.T) {
	now := time.Now()
	got, ok := ToInstant(now)
	assert.True(t, ok)
	assert.Equal(t, now, got)
}

func TestToInstant_PointerValue(t *testing.T) {
	now := time.Now()
	got, ok := ToInstant(&now)
	assert.True(t, ok)
	assert.Equal(t, now, got)
}

func TestToInstant_NilPointer(t *testing.T) {
	var p *time.Time
	_, ok := ToInstant(p)
	assert.False(t, ok)
}

func TestToInstant_RFC3339String(t *testing.T) {
	got, ok := ToInstant("2024-03-01T12:00:00Z")
	assert.True(t, ok)
	assert.Equal(t, 2024, got.Year())
}

func TestToInstant_UnparseableString(t *testing.T) {
	_, ok := ToInstant("not-a-time")
	assert.False(t, ok)
}

func TestToInstant_Nil(t *testing.T) {
	_, ok := ToInstant(nil)
	assert.False(t, ok)
}

func TestCompare(t *testing.T) {
	a := time.Now()
	b := a.Add(time.Second)
	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 1, Compare(b, a))
	assert.Equal(t, 0, Compare(a, a))
}

func TestMax(t *testing.T) {
	a := time.Now()
	b := a.Add(time.Minute)
	assert.Equal(t, b, Max(a, b))
	assert.Equal(t, b, Max(b, a))
}
