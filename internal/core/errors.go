package core

import (
	"github.com/cockroachdb/errors"
)

// ErrInvalidRequest marks failures that reject a whole import before any
// row is processed. Callers test for it with errors.Is.
var ErrInvalidRequest = errors.New("invalid import request")

var (
	ErrUnknownKind = requestError(errors.WithHint(
		errors.New("Unknown import type"),
		"Use one of: entities, affiliations, incidents"))

	ErrFolderRequired = requestError(errors.WithHint(
		errors.New("folder_id required"),
		"Choose the affiliation folder to import into"))

	ErrFileRequired = requestError(errors.WithHint(
		errors.New("file_id required"),
		"Choose the incident file to import into"))

	ErrEmptyFile = requestError(errors.WithHint(
		errors.New("empty file"),
		"Upload a file with a header row"))
)

// requestError marks err as request-level.
func requestError(err error) error {
	return errors.Mark(err, ErrInvalidRequest)
}

// IsRequestError reports whether err rejected the request as a whole.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// Hint returns the user-facing hints attached to err, if any.
func Hint(err error) string {
	return errors.FlattenHints(err)
}
