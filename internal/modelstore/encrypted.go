package modelstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"filecat/internal/filecat"
)

// ErrLocked is returned by EncryptedStore.Get when no decryption context
// has been provided.
var ErrLocked = errors.New("model store is locked: passphrase required")

// EncryptedStore wraps another ModelStore and age-encrypts artifacts before
// they leave the process. Writing needs only the public key; reading needs
// an unlocked DecryptionContext.
type EncryptedStore struct {
	inner filecat.ModelStore
	enc   filecat.Encryptor
	dec   filecat.DecryptionContext
}

var _ filecat.ModelStore = (*EncryptedStore)(nil)

// NewEncryptedStore wraps inner. dec may be nil, in which case Get fails
// with ErrLocked until Unlock is called.
func NewEncryptedStore(inner filecat.ModelStore, enc filecat.Encryptor, dec filecat.DecryptionContext) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc, dec: dec}
}

// Unlock sets the decryption context used by Get.
func (s *EncryptedStore) Unlock(dec filecat.DecryptionContext) {
	s.dec = dec
}

func (s *EncryptedStore) Put(ctx context.Context, version string, r io.Reader, size int64) error {
	counter := &countingReader{r: r}
	var ciphertext bytes.Buffer
	if err := s.enc.Encrypt(counter, &ciphertext); err != nil {
		return fmt.Errorf("encrypting model %s: %w", version, err)
	}
	if counter.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, counter.n)
	}
	return s.inner.Put(ctx, version, &ciphertext, int64(ciphertext.Len()))
}

func (s *EncryptedStore) Get(ctx context.Context, version string, w io.Writer) error {
	if s.dec == nil {
		return ErrLocked
	}
	pr, pw := io.Pipe()
	getErr := make(chan error, 1)
	go func() {
		err := s.inner.Get(ctx, version, pw)
		pw.CloseWithError(err)
		getErr <- err
	}()
	err := s.dec.Decrypt(pr, w)
	// Unblocks the writer if decryption stopped early.
	pr.CloseWithError(io.ErrClosedPipe)
	if gerr := <-getErr; gerr != nil {
		return gerr
	}
	if err != nil {
		return fmt.Errorf("decrypting model %s: %w", version, err)
	}
	return nil
}

func (s *EncryptedStore) Latest(ctx context.Context) (string, error) {
	return s.inner.Latest(ctx)
}

func (s *EncryptedStore) List(ctx context.Context) ([]string, error) {
	return s.inner.List(ctx)
}
