package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{1, 1},
		{500, 500},
		{501, MaxLimit},
		{10000, MaxLimit},
	}
	for _, tc := range cases {
		if got := NormalizeLimit(tc.in); got != tc.want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC),
		ID:        uuid.New(),
	}
	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("ParseCursor failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a cursor")
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("cursor mismatch: got %+v want %+v", got, want)
	}
}

func TestParseCursor_EmptyAndInvalid(t *testing.T) {
	got, err := ParseCursor("  ")
	if err != nil || got != nil {
		t.Fatalf("blank cursor should yield nil, nil; got %v, %v", got, err)
	}
	if _, err := ParseCursor("not-base64!!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseCursor("bm8tcGlwZQ=="); err == nil {
		t.Fatal("expected format error for cursor without separator")
	}
}
