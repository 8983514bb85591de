package modelstore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"filecat/internal/encryption"
)

func TestEncryptedStore_StoresCiphertext(t *testing.T) {
	inner := NewMemoryStore()
	s := NewEncryptedStore(inner, encryption.NewFakeEncryptor(), nil)

	data := "plain model bytes"
	if err := s.Put(context.Background(), "v1", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var raw bytes.Buffer
	if err := inner.Get(context.Background(), "v1", &raw); err != nil {
		t.Fatalf("inner Get() error = %v", err)
	}
	if raw.String() == data {
		t.Error("inner store holds plaintext")
	}
}

func TestEncryptedStore_LockedUntilUnlocked(t *testing.T) {
	enc := encryption.NewFakeEncryptor()
	s := NewEncryptedStore(NewMemoryStore(), enc, nil)

	data := "model"
	if err := s.Put(context.Background(), "v1", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	err := s.Get(context.Background(), "v1", &bytes.Buffer{})
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("Get() error = %v, want ErrLocked", err)
	}

	dec, err := enc.Unlock("secret")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	s.Unlock(dec)

	var buf bytes.Buffer
	if err := s.Get(context.Background(), "v1", &buf); err != nil {
		t.Fatalf("Get() after unlock error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("Get() = %q, want %q", buf.String(), data)
	}
}

func TestEncryptedStore_CorruptCiphertext(t *testing.T) {
	enc := encryption.NewFakeEncryptor()
	dec, _ := enc.Unlock("")
	inner := NewMemoryStore()
	s := NewEncryptedStore(inner, enc, dec)

	junk := "not encrypted"
	if err := inner.Put(context.Background(), "v1", strings.NewReader(junk), int64(len(junk))); err != nil {
		t.Fatalf("inner Put() error = %v", err)
	}
	if err := s.Get(context.Background(), "v1", &bytes.Buffer{}); err == nil {
		t.Error("Get() of corrupt ciphertext should fail")
	}
}
