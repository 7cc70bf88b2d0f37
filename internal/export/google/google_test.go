package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUserToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.json")
	payload := `{"access_token":"ya29.token","token_type":"Bearer","refresh_token":"1//refresh","expiry":"2026-03-01T12:00:00Z"}`
	if err := os.WriteFile(path, []byte(payload), 0600); err != nil {
		t.Fatal(err)
	}

	tok, err := loadUserToken(path)
	if err != nil {
		t.Fatalf("loadUserToken() error = %v", err)
	}
	if tok.AccessToken != "ya29.token" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
	if tok.RefreshToken != "1//refresh" {
		t.Errorf("RefreshToken = %q", tok.RefreshToken)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !tok.Expiry.Equal(want) {
		t.Errorf("Expiry = %v, want %v", tok.Expiry, want)
	}
}

func TestLoadUserTokenMissingFile(t *testing.T) {
	if _, err := loadUserToken(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("loadUserToken() should fail when the file does not exist")
	}
}

func TestLoadUserTokenInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadUserToken(path); err == nil {
		t.Error("loadUserToken() should fail on malformed JSON")
	}
}
