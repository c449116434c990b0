package core

// error_messages.go maps technical errors to coded user messages.
//
// Codes are grouped by category so support staff can find the cause from
// the code a user quotes:
//
//	DB001-DB008    store constraint and connectivity errors
//	IMP001-IMP007  import request and lifecycle errors
//	VAL001-VAL004  validation errors surfaced outside row results
//	FILE001-FILE005 upload and file structure errors
//	RATE001        throttling
//	ERR000         no pattern matched; check the logs for the original error
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage is user-facing error information with a suggested action.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Store constraints.
	{"duplicate key", UserMessage{"A record with this key already exists", "Review the file for repeated rows", "DB001"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate entries in your file", "DB002"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review your data for duplicate key values", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Import the referenced entities or dictionary codes first", "DB003"}},

	// Store connectivity.
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},
	{"database is locked", UserMessage{"Database is busy", "Please try again", "DB008"}},

	// Import requests.
	{"folder_id required", UserMessage{"No affiliation folder was selected", "Choose the affiliation folder to import into", "IMP001"}},
	{"file_id required", UserMessage{"No incident file was selected", "Choose the incident file to import into", "IMP001"}},
	{"too many imports", UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP002"}},
	{"not found", UserMessage{"The target container does not exist", "Create the container first or pick an existing one", "IMP003"}},
	{"unknown import type", UserMessage{"Unknown import type", "Use one of: entities, affiliations, incidents", "IMP004"}},
	{"invalid unknown action", UserMessage{"An unknown-identifier action is not recognised", "Use one of: create, unknown, skip", "IMP005"}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "IMP006"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or check your connection", "IMP007"}},

	// Validation.
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024", "VAL001"}},
	{"duplicate column", UserMessage{"The header repeats a column", "Remove the repeated column from the header row", "VAL002"}},
	{"invalid request", UserMessage{"The request body is invalid", "Check the request fields and try again", "VAL003"}},
	{"validation failed", UserMessage{"The request body is invalid", "Check the request fields and try again", "VAL003"}},
	{"unknown kind", UserMessage{"Unknown record kind", "Use one of: entities, affiliations, incidents", "VAL004"}},

	// Files.
	{"file too large", UserMessage{"File exceeds the maximum size limit", "Split the file into smaller chunks", "FILE001"}},
	{"invalid csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with consistent columns", "FILE002"}},
	{"invalid xlsx", UserMessage{"File is not a valid Excel workbook", "Save the workbook as .xlsx or export it as CSV", "FILE003"}},
	{"invalid sheet", UserMessage{"Worksheet rows do not match the header", "Remove cells to the right of the header columns", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV or XLSX file", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Upload a file with a header row", "FILE005"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user message. Unmatched errors
// get the ERR000 fallback.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a known pattern.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err, keeping the original for logging. Returns nil for nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
