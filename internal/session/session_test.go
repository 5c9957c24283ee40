package session

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	iss, err := NewIssuer("s3cret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	tok, exp, err := iss.Issue("player-1")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry %v is in the past", exp)
	}
	id, err := iss.Parse(tok)
	if err != nil || id != "player-1" {
		t.Fatalf("Parse = %q, %v", id, err)
	}
}

func TestParseRejects(t *testing.T) {
	iss, _ := NewIssuer("s3cret", time.Hour)
	other, _ := NewIssuer("different", time.Hour)
	tok, _, _ := other.Issue("player-1")

	expired, _ := NewIssuer("s3cret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue("player-1")

	good, _, _ := iss.Issue("player-1")
	tampered := good[:len(good)-2] + "xx"

	for name, tc := range map[string]string{
		"wrong secret": tok,
		"expired":      old,
		"tampered":     tampered,
		"garbage":      "not.a.jwt",
		"empty":        "",
	} {
		if _, err := iss.Parse(tc); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer("", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
