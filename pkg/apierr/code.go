package apierr

// Code is a machine-readable error code returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeNotConfigured      Code = "NOT_CONFIGURED"
)

// Analysis errors.
const (
	CodeSourceRequired Code = "SOURCE_REQUIRED"
	CodeSourceTooLarge Code = "SOURCE_TOO_LARGE"
	CodeInvalidDialect Code = "INVALID_DIALECT"
	CodeRuleViolations Code = "RULE_VIOLATIONS"
	CodeAnalysisFailed Code = "ANALYSIS_FAILED"
	CodeRenderFailed   Code = "RENDER_FAILED"
)

// Run history errors.
const (
	CodeRunNotFound   Code = "RUN_NOT_FOUND"
	CodeInvalidRunID  Code = "INVALID_RUN_ID"
	CodeRunListFailed Code = "RUN_LIST_FAILED"
	CodeInvalidLimit  Code = "INVALID_LIMIT"
)

// Batch job errors.
const (
	CodePrefixRequired   Code = "PREFIX_REQUIRED"
	CodeJobNotFound      Code = "JOB_NOT_FOUND"
	CodeInvalidJobID     Code = "INVALID_JOB_ID"
	CodeJobEnqueueFailed Code = "JOB_ENQUEUE_FAILED"
	CodeJobStatusFailed  Code = "JOB_STATUS_FAILED"
)

// Upload errors.
const (
	CodeFileRequired Code = "FILE_REQUIRED"
	CodeUploadFailed Code = "UPLOAD_FAILED"
)

// Health errors.
const (
	CodeDatabaseNotReady Code = "DATABASE_NOT_READY"
)
