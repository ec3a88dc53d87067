package logger

import (
	"context"
	"testing"
)

func TestWithContextNeverReturnsNil(t *testing.T) {
	if _, err := New("test"); err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	if WithContext(ctx) == nil {
		t.Fatal("WithContext with a request id returned nil")
	}
	if WithContext(context.Background()) == nil {
		t.Fatal("WithContext without a request id returned nil")
	}
	if WithContext(nil) == nil {
		t.Fatal("WithContext with a nil context returned nil")
	}
}

func TestMaskEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"john.doe@example.com", "joh***@example.com"},
		{"jd@example.com", "jd***@example.com"},
		{"", ""},
		{"not-an-email", "***"},
	}

	for _, tc := range cases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Errorf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"203.0.113.9", "203.0.*.*"},
		{"2001:db8:85a3:8d3:1319:8a2e:370:7348", "2001:db8:85a3:8d3:*:*:*:*"},
		{"", ""},
		{"garbage", "***"},
	}

	for _, tc := range cases {
		if got := MaskIP(tc.in); got != tc.want {
			t.Errorf("MaskIP(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"abcdefgh", "ab***gh"},
		{"abcd", "***"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := MaskToken(tc.in); got != tc.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
