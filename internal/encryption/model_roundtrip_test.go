package encryption

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"filecat/internal/classifier"
	"filecat/internal/filecat"
	"filecat/internal/modelstore"
)

// TestEncryptors_ModelRoundTrip stores a trained classifier model through the
// encrypted model store and checks that it predicts the same after reading back.
func TestEncryptors_ModelRoundTrip(t *testing.T) {
	samples := []filecat.Sample{
		{Filename: "invoice-2024-03.pdf", Category: "Invoices"},
		{Filename: "invoice_acme_2023.pdf", Category: "Invoices"},
		{Filename: "holiday-beach.jpg", Category: "Photos"},
		{Filename: "IMG_2041.jpg", Category: "Photos"},
		{Filename: "movie.night.2023.mkv", Category: "Video"},
	}
	model := classifier.Fit(samples)
	model.Version = "20240615T143045Z-0f8c2a3e1111"
	body, err := json.Marshal(model)
	if err != nil {
		t.Fatalf("encoding model: %v", err)
	}

	tests := []struct {
		name string
		enc  func(t *testing.T) filecat.Encryptor
	}{
		{
			name: "age",
			enc: func(t *testing.T) filecat.Encryptor {
				e, _ := newAgeEncryptor(t)
				if err := e.Setup("correct horse"); err != nil {
					t.Fatalf("Setup() error = %v", err)
				}
				return e
			},
		},
		{
			name: "fake",
			enc: func(t *testing.T) filecat.Encryptor {
				e := NewFakeEncryptor()
				if err := e.Setup("correct horse"); err != nil {
					t.Fatalf("Setup() error = %v", err)
				}
				return e
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			enc := tt.enc(t)

			inner, err := modelstore.NewFileSystemStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFileSystemStore() error = %v", err)
			}
			store := modelstore.NewEncryptedStore(inner, enc, nil)
			if err := store.Put(ctx, model.Version, bytes.NewReader(body), int64(len(body))); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			var raw bytes.Buffer
			if err := inner.Get(ctx, model.Version, &raw); err != nil {
				t.Fatalf("reading stored artifact: %v", err)
			}
			if json.Valid(raw.Bytes()) {
				t.Fatal("stored artifact is readable JSON")
			}

			dec, err := enc.Unlock("correct horse")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			store.Unlock(dec)

			var plain bytes.Buffer
			if err := store.Get(ctx, model.Version, &plain); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			var restored classifier.Model
			if err := json.Unmarshal(plain.Bytes(), &restored); err != nil {
				t.Fatalf("decoding restored model: %v", err)
			}

			if restored.Version != model.Version || restored.Samples != len(samples) {
				t.Errorf("restored model = %s/%d samples, want %s/%d",
					restored.Version, restored.Samples, model.Version, len(samples))
			}
			for _, name := range []string{"invoice-2025.pdf", "IMG_3000.jpg", "documentary.mkv"} {
				want, _ := model.Predict(name)
				got, ok := restored.Predict(name)
				if !ok || got != want {
					t.Errorf("Predict(%q) = %+v, want %+v", name, got, want)
				}
			}
		})
	}
}
