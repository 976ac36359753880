package dates

import (
	"testing"
	"time"
)

func TestNormalize_ISORoundTrip(t *testing.T) {
	inputs := []string{
		"2025-06-15T17:00:00Z",
		"2025-06-15T17:00:00+03:00",
		"2025-01-02T03:04:05Z",
	}
	for _, in := range inputs {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", in, err)
		}
		want, _ := time.Parse(time.RFC3339, in)
		if !got.Equal(want) {
			t.Errorf("Normalize(%q) = %v, want %v", in, got, want)
		}
		// Round-trip through RFC3339 stays stable
		again, err := Normalize(got.Format(time.RFC3339))
		if err != nil || !again.Equal(got) {
			t.Errorf("round trip of %q unstable: %v (%v)", in, again, err)
		}
	}
}

func TestNormalize_RFC1123(t *testing.T) {
	got, err := Normalize("Sun, 15 Jun 2025 17:00:00 +0300")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Day() != 15 || got.Month() != time.June || got.Year() != 2025 {
		t.Errorf("wrong date: %v", got)
	}
}

func TestNormalize_TurkishNumeric(t *testing.T) {
	got, err := Normalize("15.06.2025 - 17:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, time.June, 15, 17, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalize_TurkishNumericNoTime(t *testing.T) {
	got, err := Normalize("01.12.2024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalize_TurkishMonthName(t *testing.T) {
	got, err := Normalize("15 Haziran 2025 17:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, time.June, 15, 17, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalize_InvalidCalendarValuesFallThrough(t *testing.T) {
	// Month 13 and day 32 must be rejected by the numeric pattern, and the
	// generic parser cannot resolve them either.
	if _, err := Normalize("32.13.2025"); err == nil {
		t.Error("expected error for impossible calendar date")
	}
}

func TestNormalize_LabelPrefixStripped(t *testing.T) {
	got, err := Normalize("Son güncelleme: June 15, 2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Day() != 15 || got.Month() != time.June || got.Year() != 2025 {
		t.Errorf("wrong date: %v", got)
	}
}

func TestNormalize_LabeledTurkishDate(t *testing.T) {
	got, err := Normalize("Güncelleme: 15.06.2025 17:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, time.June, 15, 17, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalize_Empty(t *testing.T) {
	if _, err := Normalize("   "); err == nil {
		t.Error("expected error for blank input")
	}
}
