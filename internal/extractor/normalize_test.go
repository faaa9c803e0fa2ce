// internal/extractor/normalize_test.go
package extractor

import (
	"testing"
	"time"
)

func TestParseViewCount(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1.2M", 1200000},
		{"조회수 123만회", 1230000},
		{"500K", 500000},
		{"1.2M views", 1200000},
		{"2.5B views", 2500000000},
		{"3,4 k views", 3400},
		{"1,234,567 views", 1234567},
		{"42 views", 42},
		{"조회수 1,234회", 1234},
		{"조회수 1.5억회", 150000000},
		{"조회수 3천회", 3000},
		{"１２３ views", 123},
		{"12K watching", 12000},
		{"1.2万 views", 12000},
		{"3億回視聴", 300000000},
		{"1,234回視聴", 1234},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseViewCount(tt.input)
			if got == nil {
				t.Fatalf("ParseViewCount(%q) = nil, want %d", tt.input, tt.want)
			}
			if *got != tt.want {
				t.Errorf("ParseViewCount(%q) = %d, want %d", tt.input, *got, tt.want)
			}
		})
	}
}

func TestParseViewCountUnparseable(t *testing.T) {
	for _, input := range []string{
		"", "   ", "No views", "views", "조회수 없음", "LIVE",
		// out of int64 range
		"99999999999B views", "99999999999999999999 views",
		// a number glued to a unit that is not understood
		"1.2兆 views", "5ж views",
	} {
		if got := ParseViewCount(input); got != nil {
			t.Errorf("ParseViewCount(%q) = %d, want nil", input, *got)
		}
	}
}

func TestRelativeDate(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"3 days ago", now.Add(-3 * 24 * time.Hour), true},
		{"1 day ago", now.Add(-24 * time.Hour), true},
		{"Streamed 2 hours ago", now.Add(-2 * time.Hour), true},
		{"5 minutes ago", now.Add(-5 * time.Minute), true},
		{"2 weeks ago", now.Add(-14 * 24 * time.Hour), true},
		{"1 month ago", now.Add(-30 * 24 * time.Hour), true},
		{"2 years ago", now.Add(-730 * 24 * time.Hour), true},
		{"3일 전", now.Add(-3 * 24 * time.Hour), true},
		{"스트리밍 시간: 2시간 전", now.Add(-2 * time.Hour), true},
		{"1개월 전", now.Add(-30 * 24 * time.Hour), true},
		{"1.2M views", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := RelativeDate(tt.input, now)
			if ok != tt.ok {
				t.Fatalf("RelativeDate(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !got.Equal(tt.want) {
				t.Errorf("RelativeDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
