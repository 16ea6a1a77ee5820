package querycache

import (
	"testing"
	"time"

	"websearch-mcp/pkg/types"
)

func response(overview string) *types.QueryResponse {
	return &types.QueryResponse{Summary: types.Summary{Overview: overview}}
}

func TestKeyNormalisation(t *testing.T) {
	cases := []struct {
		query      string
		maxResults int
		want       string
	}{
		{"Weather in London", 5, "weather in london::5"},
		{"  weather in london  ", 5, "weather in london::5"},
		{"weather in london", 3, "weather in london::3"},
	}
	for _, tc := range cases {
		if got := Key(tc.query, tc.maxResults); got != tc.want {
			t.Fatalf("Key(%q, %d) = %q, want %q", tc.query, tc.maxResults, got, tc.want)
		}
	}
	if Key("a", 5) == Key("a", 6) {
		t.Fatal("different result counts must yield different keys")
	}
}

func TestRoundTrip(t *testing.T) {
	c := New(time.Minute)
	key := Key("golang generics", 5)

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	want := response("first")
	c.Set(key, want)
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit immediately after Set")
	}
	if got != want {
		t.Fatal("expected the identical stored value back")
	}

	// Overwrite replaces the entry.
	c.Set(key, response("second"))
	got, _ = c.Get(key)
	if got.Summary.Overview != "second" {
		t.Fatalf("expected overwritten value, got %q", got.Summary.Overview)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(10 * time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := Key("ttl test", 5)
	c.Set(key, response("cached"))

	now = now.Add(9 * time.Minute)
	if _, ok := c.Get(key); !ok {
		t.Fatal("entry expired before its TTL")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(key); ok {
		t.Fatal("entry survived past its TTL")
	}

	// The expired entry is gone after the miss, not resurrected later.
	if c.Len() != 0 {
		t.Fatalf("expected lazy eviction to remove the entry, have %d", c.Len())
	}
	if _, ok := c.Get(key); ok {
		t.Fatal("expired entry came back")
	}
}

func TestClear(t *testing.T) {
	c := New(time.Minute)
	c.Set(Key("a", 1), response("a"))
	c.Set(Key("b", 1), response("b"))
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after Clear, have %d entries", c.Len())
	}
}
