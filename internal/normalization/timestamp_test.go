package normalization

import (
	"testing"
	"time"
)

func TestNormalizeTimestamp(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "rfc3339_with_zone",
			in:   "2024-05-01T10:00:00Z",
			want: "2024-05-01 10:00:00",
		},
		{
			name: "already_canonical",
			in:   "2024-05-01 10:00:00",
			want: "2024-05-01 10:00:00",
		},
		{
			name: "fractional_seconds_truncated",
			in:   "2024-05-01T10:00:00.123456Z",
			want: "2024-05-01 10:00:00",
		},
		{
			name: "positive_offset_stripped",
			in:   "2024-05-01 10:00:00+02:00",
			want: "2024-05-01 10:00:00",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeTimestamp(tc.in)
			if got != tc.want {
				t.Fatalf("NormalizeTimestamp(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeTimestampEquivalentForms(t *testing.T) {
	a := NormalizeTimestamp("2024-05-01T10:00:00Z")
	b := NormalizeTimestamp("2024-05-01 10:00:00")
	if a != b || a != "2024-05-01 10:00:00" {
		t.Fatalf("equivalent forms diverged: %q vs %q", a, b)
	}
}

func TestNormalizeTime(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 999999, time.UTC)
	if got := NormalizeTime(ts); got != "2024-05-01 10:00:00" {
		t.Fatalf("NormalizeTime=%q", got)
	}
	if got := NormalizeTime(time.Time{}); got != "" {
		t.Fatalf("NormalizeTime(zero)=%q, want empty", got)
	}
}
