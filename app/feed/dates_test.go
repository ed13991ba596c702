package feed

import (
	"testing"
	"time"
)

func TestFormatDate(t *testing.T) {
	date := time.Date(2024, time.January, 2, 15, 4, 5, 123000000, time.UTC)

	tests := []struct {
		name     string
		format   string
		timezone string
		expected string
	}{
		{"default iso", "", "", "2024-01-02T15:04:05+00:00"},
		{"date and time", "YYYY-MM-DD HH:mm:ss", "", "2024-01-02 15:04:05"},
		{"ordinal and names", "dddd, Do MMMM YYYY", "", "Tuesday, 2nd January 2024"},
		{"escaped text", "[Day] D MMM", "", "Day 2 Jan"},
		{"twelve hour", "h:mm A", "", "3:04 PM"},
		{"milliseconds", "ss.SSS", "", "05.123"},
		{"timezone", "HH:mm Z", "America/New_York", "10:04 -05:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatDate(date, tt.format, tt.timezone, "")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFormatDate_InvalidTimezone(t *testing.T) {
	if _, err := FormatDate(time.Now(), "YYYY", "Not/AZone", ""); err == nil {
		t.Errorf("Expected error for invalid timezone")
	}
}

func TestParseDate(t *testing.T) {
	parsed, err := ParseDate("Mon, 03 Jul 2023 10:00:00 GMT")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if parsed.UTC().Hour() != 10 || parsed.Day() != 3 {
		t.Errorf("Unexpected parsed date: %v", parsed)
	}

	if _, err := ParseDate("not a date"); err == nil {
		t.Errorf("Expected error for invalid date")
	}
}

func TestOrdinal(t *testing.T) {
	cases := map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 23: "23rd"}
	for n, expected := range cases {
		if got := ordinal(n); got != expected {
			t.Errorf("Expected %s, got %s", expected, got)
		}
	}
}

func TestFormatDate_Locale(t *testing.T) {
	date := time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		locale   string
		format   string
		expected string
	}{
		{"fr", "dddd D MMMM", "lundi 15 janvier"},
		{"fr-CA", "ddd D MMM YYYY", "lun. 15 janv. 2024"},
		{"de", "dddd, Do MMMM", "Montag, 15. Januar"},
		{"es", "dddd D [de] MMMM", "lunes 15 de enero"},
		{"en-GB", "dddd D MMMM", "Monday 15 January"},
		{"ja", "dddd D MMMM", "Monday 15 January"},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			got, err := FormatDate(date, tt.format, "UTC", tt.locale)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestFormatDate_InvalidLocale(t *testing.T) {
	if _, err := FormatDate(time.Now(), "YYYY", "", "not a locale!"); err == nil {
		t.Errorf("Expected error for invalid locale")
	}
}
