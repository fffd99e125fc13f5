package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, MaxLimit + 1: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatalf("expected buffered limit 11")
	}
}

func TestCursorRoundTripAndRejects(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 123, time.UTC), ID: uuid.New()}
	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", got, want)
	}
	if c, err := ParseCursor("  "); c != nil || err != nil {
		t.Fatalf("blank cursor should mean first page")
	}
	for _, bad := range []string{"%%%", "bm8tcGlwZQ", "eHx5"} {
		if _, err := ParseCursor(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 4)
	for i := range rows {
		rows[i] = Cursor{CreatedAt: base.Add(time.Duration(i) * time.Minute), ID: uuid.New()}
	}
	identity := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 3, identity)
	if len(page) != 3 || next == "" {
		t.Fatalf("expected a full page with a next cursor, got %d %q", len(page), next)
	}
	decoded, _ := ParseCursor(next)
	if decoded.ID != rows[2].ID {
		t.Fatalf("next cursor should point at the last row of the page")
	}

	page, next = Trim(rows[:2], 3, identity)
	if len(page) != 2 || next != "" {
		t.Fatalf("expected final page without cursor, got %d %q", len(page), next)
	}
}
