package cipher

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestSealOpen(t *testing.T) {
	box, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const plaintext = "CONFIDENTIAL: termination clause requires 30 days notice"
	sealed, err := box.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("CONFIDENTIAL")) {
		t.Fatal("sealed output contains plaintext")
	}

	got, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != plaintext {
		t.Errorf("Open = %q, want %q", got, plaintext)
	}
}

func TestSeal_UniqueNonces(t *testing.T) {
	box, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a, _ := box.Seal("same input")
	b, _ := box.Seal("same input")
	if bytes.Equal(a, b) {
		t.Error("two seals of the same plaintext must differ")
	}
}

func TestOpen_WrongKey(t *testing.T) {
	box1, _ := New(testKey(t))
	box2, _ := New(testKey(t))

	sealed, err := box1.Seal("secret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := box2.Open(sealed); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("Open with wrong key = %v, want ErrDecryptFailed", err)
	}
}

func TestOpen_Tampered(t *testing.T) {
	box, _ := New(testKey(t))

	sealed, err := box.Seal("secret")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xff

	if _, err := box.Open(sealed); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("Open tampered = %v, want ErrDecryptFailed", err)
	}
}

func TestOpen_TooShort(t *testing.T) {
	box, _ := New(testKey(t))
	if _, err := box.Open([]byte{1, 2, 3}); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("Open short = %v, want ErrDecryptFailed", err)
	}
}

func TestNew_InvalidKey(t *testing.T) {
	if _, err := New("!!!not-base64!!!"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("New(bad base64) = %v, want ErrInvalidKey", err)
	}
	if _, err := New(base64.StdEncoding.EncodeToString([]byte("short"))); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("New(short key) = %v, want ErrInvalidKey", err)
	}
}
