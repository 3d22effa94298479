package apierr

import (
	"fmt"
	"net/http"
	"strings"
)

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

func NotConfigured(feature string) *Error {
	return New(CodeNotConfigured, http.StatusServiceUnavailable, feature+" is not configured")
}

// --- Analysis ---

func SourceRequired() *Error {
	return New(CodeSourceRequired, http.StatusBadRequest, "source is required")
}

func SourceTooLarge(limit int64) *Error {
	return New(CodeSourceTooLarge, http.StatusRequestEntityTooLarge, fmt.Sprintf("source must be %d bytes or fewer", limit)).
		With("max_bytes", limit)
}

func InvalidDialect(dialects []string) *Error {
	return New(CodeInvalidDialect, http.StatusBadRequest, "dialect must be one of: "+strings.Join(dialects, ", ")).
		With("dialects", dialects)
}

func RuleViolations(count int) *Error {
	return New(CodeRuleViolations, http.StatusUnprocessableEntity, fmt.Sprintf("source breaks %d formatting rule(s)", count)).
		With("violations", count)
}

func AnalysisFailed(cause error) *Error {
	return Wrap(CodeAnalysisFailed, http.StatusBadRequest, "Failed to analyze source", cause)
}

func RenderFailed(cause error) *Error {
	return Wrap(CodeRenderFailed, http.StatusInternalServerError, "Failed to render source", cause)
}

// --- Run history ---

func RunNotFound() *Error {
	return New(CodeRunNotFound, http.StatusNotFound, "Analysis run not found")
}

func InvalidRunID() *Error {
	return New(CodeInvalidRunID, http.StatusBadRequest, "Invalid run ID")
}

func RunListFailed(cause error) *Error {
	return Wrap(CodeRunListFailed, http.StatusInternalServerError, "Failed to list analysis runs", cause)
}

func InvalidLimit(upper int) *Error {
	return New(CodeInvalidLimit, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", upper)).
		With("max", upper)
}

// --- Batch jobs ---

func PrefixRequired() *Error {
	return New(CodePrefixRequired, http.StatusBadRequest, "prefix is required")
}

func JobNotFound() *Error {
	return New(CodeJobNotFound, http.StatusNotFound, "Job not found")
}

func InvalidJobID() *Error {
	return New(CodeInvalidJobID, http.StatusBadRequest, "Invalid job ID")
}

func JobEnqueueFailed(cause error) *Error {
	return Wrap(CodeJobEnqueueFailed, http.StatusInternalServerError, "Failed to enqueue job", cause)
}

func JobStatusFailed(cause error) *Error {
	return Wrap(CodeJobStatusFailed, http.StatusInternalServerError, "Failed to read job status", cause)
}

// --- Upload ---

func FileRequired() *Error {
	return New(CodeFileRequired, http.StatusBadRequest, "File is required (multipart field 'file')")
}

func UploadFailed(cause error) *Error {
	return Wrap(CodeUploadFailed, http.StatusInternalServerError, "Failed to upload file", cause)
}

// --- Health ---

func DatabaseNotReady() *Error {
	return New(CodeDatabaseNotReady, http.StatusServiceUnavailable, "Database not ready")
}
