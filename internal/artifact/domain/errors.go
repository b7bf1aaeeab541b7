package domain

import "errors"

var (
	ErrInvalidArtifactType = errors.New("invalid_artifact_type")
	ErrInvalidSubmission   = errors.New("invalid_submission")
	ErrEmptyPayload        = errors.New("empty_artifact_payload")
)
