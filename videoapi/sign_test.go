package videoapi

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func TestSignatureKnownAnswer(t *testing.T) {
	// sha256("42" + "key" + "1700000000" + "vid")
	sum := sha256.Sum256([]byte("42key1700000000vid"))
	want := hex.EncodeToString(sum[:])

	got := Signature("42", "key", 1700000000, "vid")
	if got != want {
		t.Errorf("Signature() = %s, want %s", got, want)
	}
}

func TestPresignHeaders(t *testing.T) {
	now := time.Unix(1700000000, 0)
	auth := Presign("42", "key", "vid", 6*time.Hour, now)

	if auth.Expires != now.Add(6*time.Hour).Unix() {
		t.Errorf("Expires = %d, want %d", auth.Expires, now.Add(6*time.Hour).Unix())
	}

	h := auth.Headers()
	if h["LibraryId"] != "42" {
		t.Errorf("LibraryId = %q, want %q", h["LibraryId"], "42")
	}
	if h["VideoId"] != "vid" {
		t.Errorf("VideoId = %q, want %q", h["VideoId"], "vid")
	}
	if h["AuthorizationExpire"] != "1700021600" {
		t.Errorf("AuthorizationExpire = %q, want %q", h["AuthorizationExpire"], "1700021600")
	}
	if h["AuthorizationSignature"] != auth.Signature {
		t.Error("header signature does not match computed signature")
	}
	if want := Signature("42", "key", auth.Expires, "vid"); auth.Signature != want {
		t.Errorf("Signature = %s, want %s", auth.Signature, want)
	}
}

func TestPresignIsStablePerSession(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := Presign("1", "k", "v", time.Hour, now)
	b := Presign("1", "k", "v", time.Hour, now)
	if a != b {
		t.Error("presigning with identical inputs must be deterministic")
	}
}

func TestStaticCredentials(t *testing.T) {
	creds := StaticCredentials{"7": "secret"}

	key, err := creds.APIKey("7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "secret" {
		t.Errorf("APIKey = %q, want %q", key, "secret")
	}

	if _, err := creds.APIKey("8"); err == nil {
		t.Fatal("expected error for unknown library")
	}
}
