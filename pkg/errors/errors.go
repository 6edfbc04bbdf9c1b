package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigParse ErrorCode = "CONFIG_PARSE"

	// Pre-flight errors
	ErrDiskSpace ErrorCode = "DISK_SPACE"

	// Staging and extraction errors
	ErrStaging           ErrorCode = "STAGING"
	ErrExtract           ErrorCode = "EXTRACT"
	ErrArchiveFormat     ErrorCode = "ARCHIVE_FORMAT"
	ErrArchiveEncrypted  ErrorCode = "ARCHIVE_ENCRYPTED"
	ErrArchivePathEscape ErrorCode = "ARCHIVE_PATH_ESCAPE"
	ErrEntryNotInArchive ErrorCode = "ENTRY_NOT_IN_ARCHIVE"

	// Transaction errors
	ErrRollbackFailed ErrorCode = "ROLLBACK_FAILED"
	ErrSymlinkEscape  ErrorCode = "SYMLINK_ESCAPE"
	ErrCopyDepth      ErrorCode = "COPY_DEPTH"

	// Backup and restore errors
	ErrBackupVerify  ErrorCode = "BACKUP_VERIFY"
	ErrRestoreVerify ErrorCode = "RESTORE_VERIFY"

	// Verification errors
	ErrMarkerMissing ErrorCode = "MARKER_MISSING"
	ErrEmptyTarget   ErrorCode = "EMPTY_TARGET"
	ErrHashMismatch  ErrorCode = "HASH_MISMATCH"

	// FileSystem errors
	ErrFileNotFound ErrorCode = "FILE_NOT_FOUND"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
	ErrFileCreate   ErrorCode = "FILE_CREATE"
	ErrDirCreate    ErrorCode = "DIR_CREATE"
)

// AirliftError represents a structured error with code and details
type AirliftError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *AirliftError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AirliftError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *AirliftError) Is(target error) bool {
	var targetErr *AirliftError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new AirliftError with the given code and message
func New(code ErrorCode, message string) *AirliftError {
	return &AirliftError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new AirliftError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AirliftError {
	return &AirliftError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an AirliftError
func Wrap(err error, code ErrorCode, message string) *AirliftError {
	if err == nil {
		return nil
	}
	return &AirliftError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AirliftError {
	if err == nil {
		return nil
	}
	return &AirliftError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *AirliftError) WithDetail(key string, value interface{}) *AirliftError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var aerr *AirliftError
	if errors.As(err, &aerr) {
		return aerr.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrUnknown if not an AirliftError
func GetErrorCode(err error) ErrorCode {
	var aerr *AirliftError
	if errors.As(err, &aerr) {
		return aerr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not an AirliftError
func GetErrorDetails(err error) map[string]interface{} {
	var aerr *AirliftError
	if errors.As(err, &aerr) {
		return aerr.Details
	}
	return nil
}
