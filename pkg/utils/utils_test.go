package utils

import (
	"strings"
	"testing"
)

func TestHashStringDeterministic(t *testing.T) {
	a := HashString("modlog")
	b := HashString("modlog")
	if a != b {
		t.Errorf("hash not deterministic: %s vs %s", a, b)
	}
	if len(a) != 40 {
		t.Errorf("unexpected hash length %d", len(a))
	}
	if a == HashString("modlog2") {
		t.Error("distinct inputs produced the same hash")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "Short enough", in: "hello", max: 10, want: "hello"},
		{name: "Exact length", in: "hello", max: 5, want: "hello"},
		{name: "Truncated", in: "hello world", max: 5, want: "hello" + MoreIndicator},
		{name: "Zero max keeps input", in: "hello", max: 0, want: "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestTruncateMultibyte(t *testing.T) {
	in := strings.Repeat("ü", 20)
	got := Truncate(in, 10)
	if !strings.HasPrefix(got, strings.Repeat("ü", 10)) || !strings.HasSuffix(got, MoreIndicator) {
		t.Errorf("multibyte truncation wrong: %q", got)
	}
}
