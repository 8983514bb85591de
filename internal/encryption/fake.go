package encryption

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"filecat/internal/filecat"
)

// fakeMagic starts every FakeEncryptor ciphertext.
var fakeMagic = []byte("FCFAKE1\n")

// fakeKey is XORed over the plaintext so a stored model never reads as JSON.
var fakeKey = []byte("filecat-model-key")

// ErrWrongPassphrase is returned by FakeEncryptor.Unlock when a passphrase was
// set up and a different one is given.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// FakeEncryptor is the "test" encryption type. It needs no key files, so an
// encrypted model store can run in tests and throwaway setups. Ciphertext is
// fakeMagic followed by the plaintext XORed with fakeKey.
type FakeEncryptor struct {
	mu         sync.Mutex
	passphrase string
}

var _ filecat.Encryptor = (*FakeEncryptor)(nil)

// NewFakeEncryptor creates a FakeEncryptor that accepts any passphrase until
// Setup is called.
func NewFakeEncryptor() *FakeEncryptor {
	return &FakeEncryptor{}
}

// Setup remembers the passphrase; later Unlock calls must repeat it.
func (e *FakeEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.passphrase != "" {
		return ErrKeysExist
	}
	e.passphrase = passphrase
	return nil
}

func (e *FakeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(fakeMagic); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := xorCopy(w, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	return nil
}

func (e *FakeEncryptor) Unlock(passphrase string) (filecat.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return fakeDecryptor{}, nil
}

// IsConfigured is always true: the fake has no key files to create.
func (e *FakeEncryptor) IsConfigured() bool {
	return true
}

type fakeDecryptor struct{}

func (fakeDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	header := make([]byte, len(fakeMagic))
	if _, err := io.ReadFull(br, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, fakeMagic) {
		return fmt.Errorf("not a fake-encrypted artifact")
	}
	if err := xorCopy(w, br); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}

// xorCopy streams r to w, XORing each byte with fakeKey by stream offset.
func xorCopy(w io.Writer, r io.Reader) error {
	buf := make([]byte, 32*1024)
	var off int
	for {
		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			buf[i] ^= fakeKey[(off+i)%len(fakeKey)]
		}
		off += n
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
