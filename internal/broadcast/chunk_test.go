package broadcast

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func makeRecipients(n int) []Recipient {
	rs := make([]Recipient, n)
	for i := range rs {
		rs[i] = Recipient{ID: int64(i + 1), Role: "client"}
	}
	return rs
}

func TestChunkRecipients(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		n         int
		size      int
		wantSizes []int
	}{
		{name: "empty", n: 0, size: 30, wantSizes: nil},
		{name: "single partial", n: 7, size: 30, wantSizes: []int{7}},
		{name: "exact multiple", n: 60, size: 30, wantSizes: []int{30, 30}},
		{name: "two full chunks plus tail", n: 65, size: 30, wantSizes: []int{30, 30, 5}},
		{name: "size one", n: 3, size: 1, wantSizes: []int{1, 1, 1}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkRecipients(makeRecipients(tt.n), tt.size)
			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("chunk count = %d, want %d", len(chunks), len(tt.wantSizes))
			}
			var next int64 = 1
			for i, ch := range chunks {
				if len(ch) != tt.wantSizes[i] {
					t.Fatalf("chunk %d size = %d, want %d", i, len(ch), tt.wantSizes[i])
				}
				// Original order, no one skipped or duplicated.
				for _, r := range ch {
					if r.ID != next {
						t.Fatalf("chunk %d: recipient %d out of order (want %d)", i, r.ID, next)
					}
					next++
				}
			}
			if int(next-1) != tt.n {
				t.Fatalf("covered %d recipients, want %d", next-1, tt.n)
			}
		})
	}
}

func TestEstimateSeconds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		n, size, want int
	}{
		{n: 65, size: 30, want: 8},
		{n: 30, size: 30, want: 6},
		{n: 1, size: 30, want: 6},
		{n: 0, size: 30, want: 5},
		{n: 10000, size: 30, want: 339},
	}
	for _, tt := range tests {
		if got := EstimateSeconds(tt.n, tt.size); got != tt.want {
			t.Fatalf("EstimateSeconds(%d, %d) = %d, want %d", tt.n, tt.size, got, tt.want)
		}
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	t.Run("short text untouched", func(t *testing.T) {
		t.Parallel()
		parts := SplitText("hello", 4096)
		if len(parts) != 1 || parts[0] != "hello" {
			t.Fatalf("unexpected parts: %q", parts)
		}
	})

	t.Run("10000 runes split 4096/4096/1808", func(t *testing.T) {
		t.Parallel()
		in := strings.Repeat("ж", 10000)
		parts := SplitText(in, 4096)
		wantLens := []int{4096, 4096, 1808}
		if len(parts) != len(wantLens) {
			t.Fatalf("got %d parts, want %d", len(parts), len(wantLens))
		}
		for i, p := range parts {
			if n := utf8.RuneCountInString(p); n != wantLens[i] {
				t.Fatalf("part %d has %d runes, want %d", i, n, wantLens[i])
			}
		}
		if strings.Join(parts, "") != in {
			t.Fatal("concatenated parts differ from input")
		}
	})

	t.Run("never splits mid-rune", func(t *testing.T) {
		t.Parallel()
		in := strings.Repeat("日本語", 5)
		for _, p := range SplitText(in, 4) {
			if !utf8.ValidString(p) {
				t.Fatalf("invalid UTF-8 segment %q", p)
			}
		}
	})
}
