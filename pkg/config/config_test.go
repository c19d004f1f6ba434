package config

import "testing"

func TestParseDemoUsers(t *testing.T) {
	got := parseDemoUsers("1:123456, 42:abcdef")
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	if got[1] != "123456" || got[42] != "abcdef" {
		t.Errorf("unexpected mapping: %v", got)
	}
}

func TestParseDemoUsersMalformed(t *testing.T) {
	for _, raw := range []string{"", "nonsense", "x:1", "7:", ":key", ","} {
		if got := parseDemoUsers(raw); len(got) != 0 {
			t.Errorf("parseDemoUsers(%q) = %v, expected empty", raw, got)
		}
	}
}
