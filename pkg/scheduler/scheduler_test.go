package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBoarding(t *testing.T) {
	// spec.md §8 scenario 4
	instant := time.Date(2024, 1, 1, 14, 7, 30, 0, time.UTC)
	c := Classify(instant, nil)

	assert.Equal(t, Boarding, c.Status)
	assert.Equal(t, time.Date(2024, 1, 1, 14, 10, 0, 0, time.UTC), c.NextDeparture)
	assert.False(t, c.IsDepartureTime())
}

func TestClassifyWaiting(t *testing.T) {
	instant := time.Date(2024, 1, 1, 14, 1, 0, 0, time.UTC)
	c := Classify(instant, nil)
	assert.Equal(t, Waiting, c.Status)
}

func TestClassifyDeparting(t *testing.T) {
	instant := time.Date(2024, 1, 1, 14, 10, 0, 0, time.UTC)
	c := Classify(instant, nil)
	assert.Equal(t, Departing, c.Status)
	assert.True(t, c.IsDepartureTime())
}

func TestClassifyPurity(t *testing.T) {
	instant := time.Date(2024, 1, 1, 14, 7, 30, 0, time.UTC)
	a := Classify(instant, nil)
	b := Classify(instant, nil)
	assert.Equal(t, a, b)
}

func TestClassifyBoardingBoundaryOneMinute(t *testing.T) {
	instant := time.Date(2024, 1, 1, 14, 9, 0, 0, time.UTC)
	c := Classify(instant, nil)
	assert.Equal(t, Boarding, c.Status)
}
