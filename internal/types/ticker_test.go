package types

import "testing"

func TestNormalizeTicker(t *testing.T) {
	cases := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"AAPL", "AAPL", true},
		{"aapl", "AAPL", true},
		{"  msft  ", "MSFT", true},
		{"brk-b", "BRK-B", true},
		{"x_1", "X_1", true},
		{"ABCDEFGH12345678", "ABCDEFGH12345678", true},
		{"", "", false},
		{"   ", "", false},
		{"AA PL", "AA PL", false},
		{"AAPL!", "AAPL!", false},
		{"TOO.LONG", "TOO.LONG", false},
		{"ABCDEFGH123456789", "ABCDEFGH123456789", false},
	}

	for _, tc := range cases {
		got, ok := NormalizeTicker(tc.raw)
		if ok != tc.wantOK {
			t.Errorf("NormalizeTicker(%q): expected ok=%v, got %v", tc.raw, tc.wantOK, ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("NormalizeTicker(%q): expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}
