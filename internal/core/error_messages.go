package core

// # Error Codes Reference
//
// User-facing messages for the failures of an import run. Each carries a code
// operators can quote when reporting a problem.
//
// # Schema Errors (SCH001)
//
//	SCH001 - Missing columns: A batch file lacks one or more required columns
//	         Action: Add the listed columns (No., SSCC / Parcel ID, Country Code)
//	         Match: *SchemaError
//
// # State Errors (STA001-STA099)
//
//	STA001 - Corrupt pallet id: A stored pallet id does not match the id format
//	         Action: Fix or remove the listed pallet id in parcel_table
//	         Match: *CorruptStateError
//
//	STA002 - Sequence exhausted: No pallet ids remain for the configured width
//	         Action: Increase PALLET_SEQUENCE_WIDTH or archive old pallets
//	         Match: ErrSequenceExhausted
//
// # Database Errors (DB004-DB099)
//
//	DB004 - Store unavailable: Unable to reach the database
//	        Action: Check DATABASE_URL and connectivity, then re-run the import
//	        Match: *StoreUnavailableError, "connection refused"
//
//	DB005 - Connection reset: Database connection was interrupted
//	        Action: Re-run the import
//	        Patterns: "connection reset"
//
//	DB006 - Timeout: Operation timed out
//	        Action: Re-run the import; raise IMPORT_TIMEOUT for large batches
//	        Patterns: "timeout", "deadline exceeded"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import in progress: Another run has not finished
//	         Action: Wait for the running import to complete
//	         Match: ErrImportInProgress
//
//	IMP002 - Folder unreadable: The batch folder cannot be read
//	         Action: Check IMPORT_DIR exists and is readable
//	         Patterns: "read folder"
//
//	IMP003 - Pallet not found: No pallet with this id
//	         Action: Verify the pallet id
//	         Match: ErrPalletNotFound
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Check the logs for the technical error
//
// Typed errors are matched first with errors.As / errors.Is; only then are
// the text patterns tried, case-insensitively, first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgSchema = UserMessage{
		Message: "A batch file is missing required columns",
		Action:  "Add the listed columns (No., SSCC / Parcel ID, Country Code) and re-run",
		Code:    "SCH001",
	}
	msgCorruptState = UserMessage{
		Message: "Stored pallet data does not match the expected format",
		Action:  "Fix or remove the listed pallet id in parcel_table, then re-run",
		Code:    "STA001",
	}
	msgSequenceExhausted = UserMessage{
		Message: "No pallet ids remain for the configured width",
		Action:  "Increase PALLET_SEQUENCE_WIDTH or archive old pallets",
		Code:    "STA002",
	}
	msgStoreUnavailable = UserMessage{
		Message: "Unable to reach the database",
		Action:  "Check DATABASE_URL and connectivity, then re-run the import",
		Code:    "DB004",
	}
	msgInProgress = UserMessage{
		Message: "Another import is still running",
		Action:  "Wait for the running import to complete",
		Code:    "IMP001",
	}
	msgPalletNotFound = UserMessage{
		Message: "No pallet with this id",
		Action:  "Verify the pallet id",
		Code:    "IMP003",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (lowercase) to user messages.
// More specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "connection refused", msg: msgStoreUnavailable},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Re-run the import",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Re-run the import; raise IMPORT_TIMEOUT for large batches",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Re-run the import; raise IMPORT_TIMEOUT for large batches",
			Code:    "DB006",
		},
	},
	{
		pattern: "read folder",
		msg: UserMessage{
			Message: "The batch folder cannot be read",
			Action:  "Check IMPORT_DIR exists and is readable",
			Code:    "IMP002",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the technical error",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		schemaErr  *SchemaError
		corruptErr *CorruptStateError
		storeErr   *StoreUnavailableError
	)
	switch {
	case errors.As(err, &schemaErr):
		return msgSchema
	case errors.As(err, &corruptErr):
		return msgCorruptState
	case errors.Is(err, ErrSequenceExhausted):
		return msgSequenceExhausted
	case errors.As(err, &storeErr):
		return msgStoreUnavailable
	case errors.Is(err, ErrImportInProgress):
		return msgInProgress
	case errors.Is(err, ErrPalletNotFound):
		return msgPalletNotFound
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error maps to a specific message rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
