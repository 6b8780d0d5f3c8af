// Package validation provides centralized input validation logic.
// This includes artifact name and debug identifier checks and sanity bounds
// on negotiated server capabilities.
//
// All caller inputs are validated before any request is issued so that
// malformed artifacts fail fast instead of mid-run.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/pubtypes"
)

// MaxArtifactNameLength bounds artifact display names, matching what the
// service stores.
const MaxArtifactNameLength = 256

// ValidateArtifactName validates the display name an artifact is published
// under.
func ValidateArtifactName(name string) error {
	if name == "" {
		return puberrors.NewError("validateArtifactName", puberrors.ErrInvalidInput).
			WithMessage("artifact name cannot be empty")
	}
	if len(name) > MaxArtifactNameLength {
		return puberrors.NewError("validateArtifactName", puberrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("artifact name cannot exceed %d characters", MaxArtifactNameLength))
	}
	if hasControlCharacters(name) {
		return puberrors.NewError("validateArtifactName", puberrors.ErrInvalidInput).
			WithMessage("artifact name cannot contain control characters")
	}
	return nil
}

// ValidateDebugID validates a unique debug identifier: a UUID, optionally
// followed by a hyphenated age appendix (e.g.
// "c02651ae-cd6f-492d-bc33-0b83111e7106-8d8e7c60").
func ValidateDebugID(id string) error {
	if id == "" {
		return puberrors.NewError("validateDebugID", puberrors.ErrInvalidInput).
			WithMessage("debug identifier cannot be empty")
	}
	if len(id) < 36 {
		return puberrors.NewError("validateDebugID", puberrors.ErrInvalidInput).
			WithMessage("debug identifier is too short to contain a UUID")
	}
	if _, err := uuid.Parse(id[:36]); err != nil {
		return puberrors.NewError("validateDebugID", puberrors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("debug identifier must start with a UUID: %v", err))
	}
	if appendix := id[36:]; appendix != "" {
		if !strings.HasPrefix(appendix, "-") || !isHex(appendix[1:]) {
			return puberrors.NewError("validateDebugID", puberrors.ErrInvalidInput).
				WithMessage("debug identifier appendix must be hyphen-separated hex")
		}
	}
	return nil
}

// ValidateCapabilities checks the negotiated limits are internally
// consistent. A server advertising impossible limits is treated the same as
// one omitting them.
func ValidateCapabilities(caps *pubtypes.ServerCapabilities) error {
	switch {
	case caps.UploadURL == "":
		return capabilityError("upload url cannot be empty")
	case caps.ChunkSize <= 0:
		return capabilityError(fmt.Sprintf("chunk size must be positive, got %d", caps.ChunkSize))
	case caps.MaxChunksPerRequest <= 0:
		return capabilityError(fmt.Sprintf("chunks per request must be positive, got %d", caps.MaxChunksPerRequest))
	case caps.MaxRequestSize <= 0:
		return capabilityError(fmt.Sprintf("max request size must be positive, got %d", caps.MaxRequestSize))
	case caps.MaxRequestSize < caps.ChunkSize:
		return capabilityError(fmt.Sprintf(
			"max request size %d cannot hold a single %d-byte chunk",
			caps.MaxRequestSize, caps.ChunkSize))
	case caps.Concurrency <= 0:
		return capabilityError(fmt.Sprintf("concurrency must be positive, got %d", caps.Concurrency))
	}
	return nil
}

// capabilityError builds a capability validation failure.
func capabilityError(msg string) error {
	return puberrors.NewError("validateCapabilities", puberrors.ErrCapability).
		WithMessage(msg)
}

// hasControlCharacters checks for control characters in a string.
func hasControlCharacters(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// isHex reports whether s is non-empty lowercase or uppercase hex.
func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
