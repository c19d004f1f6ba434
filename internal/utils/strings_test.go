package utils

import "testing"

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@Example.COM "); got != "a@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestNormalizeMobile(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 123-4567": "+15551234567",
		"555.123.4567":      "5551234567",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizeMobile(in); got != want {
			t.Errorf("NormalizeMobile(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@example.com", "A.B@sub.example.org"}
	invalid := []string{"", "nope", "a@b", "a@@example.com"}

	for _, e := range valid {
		if !IsValidEmail(e) {
			t.Errorf("expected %q to be valid", e)
		}
	}
	for _, e := range invalid {
		if IsValidEmail(e) {
			t.Errorf("expected %q to be invalid", e)
		}
	}
}

func TestIsValidMobile(t *testing.T) {
	if !IsValidMobile("+1 (555) 123-4567") {
		t.Error("expected formatted number to be valid")
	}
	if IsValidMobile("12345") {
		t.Error("expected short number to be invalid")
	}
}
