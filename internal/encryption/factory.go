package encryption

import (
	"fmt"

	"filecat/internal/config"
	"filecat/internal/filecat"
)

// NewEncryptorFromConfig creates the model artifact Encryptor named by cfg.Type.
// The age type needs both key paths; "filecat keys init" creates the files.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (filecat.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption needs public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewFakeEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
