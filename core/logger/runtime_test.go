package logger

import (
	"testing"
)

func TestBuildRID(t *testing.T) {
	rid := BuildRID(42, -1001234567890, 7)
	if rid != "42:-1001234567890:7" {
		t.Fatalf("unexpected rid: %s", rid)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithRID(Background(), "rid-1")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	if got := RIDFrom(ctx); got != "rid-1" {
		t.Fatalf("rid = %q", got)
	}
	if got := UpdateIDFrom(ctx); got != 42 {
		t.Fatalf("update id = %d", got)
	}
	if got := UserIDFrom(ctx); got != 7 {
		t.Fatalf("user id = %d", got)
	}
	if got := ChatIDFrom(ctx); got != 9 {
		t.Fatalf("chat id = %d", got)
	}
}

func TestContextDefaults(t *testing.T) {
	if got := RIDFrom(nil); got != "" {
		t.Fatalf("rid from nil = %q", got)
	}
	if got := UserIDFrom(Background()); got != 0 {
		t.Fatalf("user id from empty = %d", got)
	}
	if FromContext(nil) != L {
		t.Fatal("expected global logger fallback")
	}
}

func TestSanitize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain", "plain"},
		{"with\nnewline\tand tab", "with\nnewline\tand tab"},
		{"ctrl\x00char\x1b[0m", "ctrlchar[0m"},
		{"del\x7fchar", "delchar"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Sanitize(tc.in); got != tc.want {
			t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("абвгд", 3); got != "абв" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
	if got := SanitizeLimit("short", 0); got != "" {
		t.Fatalf("SanitizeLimit zero max = %q", got)
	}
}
