package clock

import (
	"testing"
	"time"
)

func TestTodayTruncatesToUTCDate(t *testing.T) {
	c := NewFakeClock(time.Date(2024, 6, 15, 23, 59, 10, 0, time.FixedZone("IST", 5*3600+1800)))
	got := Today(c)
	want := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestFakeClockAdvance(t *testing.T) {
	c := NewFakeClock(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	c.Advance(24 * time.Hour)
	if got := Today(c); got.Month() != time.February || got.Day() != 1 {
		t.Fatalf("expected 2024-02-01, got %s", got.Format("2006-01-02"))
	}
}
