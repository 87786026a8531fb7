package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pipeline errors
const (
	// ErrCodeTranscriptionFailed indicates the transcription engine failed.
	// Fatal to the job; never retried automatically.
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	// ErrCodeSpeakerSubmissionInvalid indicates a speaker-name submission was
	// rejected: the job is not awaiting names, or the map is malformed.
	ErrCodeSpeakerSubmissionInvalid ErrorCode = "SPEAKER_SUBMISSION_INVALID"
	// ErrCodeRecapGenerationFailed indicates the recap LLM call failed.
	ErrCodeRecapGenerationFailed ErrorCode = "RECAP_GENERATION_FAILED"
	// ErrCodeWikiPushFailed indicates the wiki ingest push failed.
	ErrCodeWikiPushFailed ErrorCode = "WIKI_PUSH_FAILED"
	// ErrCodePersistenceFailed indicates a session store write failed.
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
)

// Generic errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeConflict indicates a conflict with the current state of the resource.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeInvalidInput indicates the request input was invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// retryableCodes are codes a caller may reasonably retry.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeWikiPushFailed: true,
}

// IsRetryableCode reports whether the code is retryable by a caller.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
