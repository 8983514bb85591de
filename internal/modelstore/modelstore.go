// Package modelstore provides filecat.ModelStore backends for trained
// classifier models: in memory, on the local filesystem and in S3, with an
// optional age-encrypted wrapper.
package modelstore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelNotFound is returned by Get for an unknown version.
var ErrModelNotFound = errors.New("model not found")

const (
	modelsDir    = "models"
	modelExt     = ".model"
	latestMarker = "LATEST"
)

// validateVersion rejects versions that cannot be used as a file or object name.
func validateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("model version must not be empty")
	}
	if strings.ContainsAny(version, `/\`) || strings.HasPrefix(version, ".") || version == latestMarker {
		return fmt.Errorf("invalid model version %q", version)
	}
	return nil
}
