package artifacts

import "errors"

var (
	// ErrArtifactUnreadable indicates an artifact file could not be opened or read.
	ErrArtifactUnreadable = errors.New("artifact unreadable")

	// ErrArtifactMalformed indicates an artifact file was read but could not be parsed.
	ErrArtifactMalformed = errors.New("artifact malformed")
)
