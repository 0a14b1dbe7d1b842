package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func newKey(t *testing.T) string {
	t.Helper()
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func TestNewAESSealerKeyValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", newKey(t), false},
		{"empty", "", true},
		{"not base64", "!!!", true},
		{"short", base64.StdEncoding.EncodeToString([]byte("short")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAESSealer(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSealOpen(t *testing.T) {
	s, err := NewAESSealer(newKey(t))
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := s.Seal("access-token")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sealed, Prefix) || strings.Contains(sealed, "access-token") {
		t.Fatalf("sealed = %q", sealed)
	}
	again, _ := s.Seal("access-token")
	if again == sealed {
		t.Error("nonce reused")
	}
	got, err := s.Open(sealed)
	if err != nil || got != "access-token" {
		t.Fatalf("Open = %q, %v", got, err)
	}
}

func TestOpenLegacyPlaintext(t *testing.T) {
	s, _ := NewAESSealer(newKey(t))
	got, err := s.Open("oldtoken")
	if err != nil || got != "oldtoken" {
		t.Fatalf("Open = %q, %v", got, err)
	}
	if v, _ := s.Seal(""); v != "" {
		t.Errorf("Seal(\"\") = %q", v)
	}
}

func TestOpenWrongKey(t *testing.T) {
	a, _ := NewAESSealer(newKey(t))
	b, _ := NewAESSealer(newKey(t))
	sealed, _ := a.Seal("secret")
	if _, err := b.Open(sealed); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
	if _, err := a.Open(Prefix + "xx"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestPlain(t *testing.T) {
	var p Plain
	if v, _ := p.Seal("x"); v != "x" {
		t.Errorf("Seal = %q", v)
	}
	if _, err := p.Open(Prefix + "abc"); err == nil {
		t.Error("expected error opening sealed value without key")
	}
}
