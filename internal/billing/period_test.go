package billing

import (
	"testing"
	"time"
)

func TestResolvePeriodPreviousMonth(t *testing.T) {
	cases := []struct {
		name      string
		ref       time.Time
		wantYear  int
		wantMonth time.Month
		wantLabel string
	}{
		{"march resolves to february", time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC), 2025, time.February, "2025-02"},
		{"january rolls into prior year", time.Date(2025, time.January, 2, 8, 0, 0, 0, time.UTC), 2024, time.December, "2024-12"},
		{"december resolves to november", time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC), 2024, time.November, "2024-11"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolvePeriod(tc.ref)
			if got.Year != tc.wantYear || got.Month != tc.wantMonth {
				t.Fatalf("ResolvePeriod(%v) = %d-%s, want %d-%s", tc.ref, got.Year, got.Month, tc.wantYear, tc.wantMonth)
			}
			if got.Label != tc.wantLabel {
				t.Fatalf("label = %s, want %s", got.Label, tc.wantLabel)
			}
		})
	}
}

func TestPeriodBounds(t *testing.T) {
	p := PeriodOf(2025, time.February)
	if p.Start.Day() != 1 {
		t.Fatalf("start day = %d, want 1", p.Start.Day())
	}
	if p.End.Day() != 28 {
		t.Fatalf("end day = %d, want 28", p.End.Day())
	}
	if p.Start.Month() != time.February || p.End.Month() != time.February {
		t.Fatalf("bounds leaked out of february: %v .. %v", p.Start, p.End)
	}

	leap := PeriodOf(2024, time.February)
	if leap.End.Day() != 29 {
		t.Fatalf("leap year end day = %d, want 29", leap.End.Day())
	}
}

func TestParseReferenceOverride(t *testing.T) {
	cases := []struct {
		input string
		ok    bool
	}{
		{"2025-06-15", true},
		{"2025-06-15T10:30:00Z", true},
		{"2025-06-15T10:30:00-06:00", true},
		{"15/06/2025", false},
		{"2025-13-45", false},
		{"yesterday", false},
		{"", false},
	}
	for _, tc := range cases {
		_, ok := ParseReferenceOverride(tc.input)
		if ok != tc.ok {
			t.Fatalf("ParseReferenceOverride(%q) ok = %v, want %v", tc.input, ok, tc.ok)
		}
	}
}

func TestParseReferenceOverrideUsesBusinessZone(t *testing.T) {
	ref, ok := ParseReferenceOverride("2025-01-01")
	if !ok {
		t.Fatal("expected override to parse")
	}
	p := ResolvePeriod(ref)
	if p.Label != "2024-12" {
		t.Fatalf("label = %s, want 2024-12", p.Label)
	}
}
