package core

// error_messages.go maps technical errors to messages an end user can act on.
//
// # Error Codes Reference
//
// Codes are quoted by users when reporting problems, so they never change
// meaning once assigned.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large          Patterns: "file too large"
//	FILE002 - Invalid CSV             Patterns: "invalid csv"
//	FILE003 - Invalid workbook        Patterns: "invalid workbook"
//	FILE004 - No file selected        Patterns: "no files provided"
//	FILE005 - Legacy .xls             Patterns: "legacy binary .xls"
//	FILE006 - Unsupported format      Patterns: "unsupported file format"
//	FILE007 - Too many files          Patterns: "too many files"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Id collision on merge    Patterns: "duplicate record id"
//	IMP002 - File unreadable          Patterns: "decode "
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Unknown export format    Patterns: "unsupported export format"
//	EXP002 - Export failed            Patterns: "export csv failed", "export xlsx failed"
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Record not found         Patterns: "record not found"
//	REC002 - Invalid record id        Patterns: "invalid record id"
//	REC003 - Invalid patch body       Patterns: "invalid patch"
//	REC004 - Activity entry missing   Patterns: "activity entry not found"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy              Patterns: "too many imports"
//	UPL002 - Request cancelled        Patterns: "context canceled"
//	UPL003 - Request timed out        Patterns: "context deadline exceeded"
//	UPL004 - Unauthorized             Patterns: "invalid api key"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests       Patterns: "rate limit"
//
// # Default (ERR000)
//
// Returned when nothing matches. Check the logs for the technical error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns precede general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Reference for support
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Export errors come first: their text may embed file-format wording.
	{"unsupported export format", UserMessage{
		Message: "Unknown export format",
		Action:  "Choose csv or xlsx",
		Code:    "EXP001",
	}},

	// File errors
	{"file too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller parts",
		Code:    "FILE001",
	}},
	{"invalid csv", UserMessage{
		Message: "File is not a valid CSV",
		Action:  "Check quoting and save the file again as CSV",
		Code:    "FILE002",
	}},
	{"invalid workbook", UserMessage{
		Message: "Workbook could not be opened",
		Action:  "Open the file in Excel and save it again as .xlsx",
		Code:    "FILE003",
	}},
	{"no files provided", UserMessage{
		Message: "No file was selected",
		Action:  "Select one or more .xlsx or .csv files",
		Code:    "FILE004",
	}},
	{"legacy binary .xls", UserMessage{
		Message: "Old Excel format (.xls) is not supported",
		Action:  "Save the file as .xlsx or .csv",
		Code:    "FILE005",
	}},
	{"unsupported file format", UserMessage{
		Message: "File type is not supported",
		Action:  "Upload .xlsx or .csv files",
		Code:    "FILE006",
	}},
	{"too many files", UserMessage{
		Message: "Too many files in one import",
		Action:  "Import the files in smaller batches",
		Code:    "FILE007",
	}},

	// Import errors
	{"duplicate record id", UserMessage{
		Message: "Imported records collide with existing ids",
		Action:  "Please run the import again",
		Code:    "IMP001",
	}},

	// Export failures after format selection
	{"export csv failed", UserMessage{
		Message: "Export failed",
		Action:  "Please try again",
		Code:    "EXP002",
	}},
	{"export xlsx failed", UserMessage{
		Message: "Export failed",
		Action:  "Please try again or export as CSV",
		Code:    "EXP002",
	}},

	// Record errors
	{"record not found", UserMessage{
		Message: "Address not found",
		Action:  "Reload the list, the data may have been reset",
		Code:    "REC001",
	}},
	{"invalid record id", UserMessage{
		Message: "Invalid address id",
		Action:  "Use the id shown in the address list",
		Code:    "REC002",
	}},
	{"activity entry not found", UserMessage{
		Message: "Activity entry not found",
		Action:  "Reload the activity list",
		Code:    "REC004",
	}},
	{"invalid patch", UserMessage{
		Message: "Invalid change request",
		Action:  "Only notes and completion can be edited",
		Code:    "REC003",
	}},

	// Upload and request errors
	{"too many imports", UserMessage{
		Message: "System is busy processing other imports",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL002",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try importing fewer or smaller files",
		Code:    "UPL003",
	}},
	{"invalid api key", UserMessage{
		Message: "Not authorized",
		Action:  "Provide a valid API key",
		Code:    "UPL004",
	}},

	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},

	// Generic decode failure, after the specific file errors above.
	{"decode ", UserMessage{
		Message: "A file could not be read",
		Action:  "Check that the file opens in Excel and try again",
		Code:    "IMP002",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Unknown errors map to ERR000; nil maps to the zero UserMessage.
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
// Error returns the user message; Unwrap returns the technical error.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
