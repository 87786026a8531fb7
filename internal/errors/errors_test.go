package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WikiPushFailed("the wiki could not be reached", cause)

	msg := err.Error()
	if !strings.Contains(msg, "WIKI_PUSH_FAILED") || !strings.Contains(msg, "connection refused") {
		t.Errorf("Error() = %q", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestAsUnwrapsThroughWrapping(t *testing.T) {
	inner := TranscriptionFailed("unsupported audio format", nil)
	wrapped := fmt.Errorf("job failed: %w", inner)

	appErr, ok := As(wrapped)
	if !ok || appErr.Code != ErrCodeTranscriptionFailed {
		t.Errorf("As(wrapped) = %v, %v", appErr, ok)
	}
	if !HasCode(wrapped, ErrCodeTranscriptionFailed) {
		t.Error("HasCode missed wrapped AppError")
	}
	if HasCode(errors.New("plain"), ErrCodeTranscriptionFailed) {
		t.Error("HasCode matched a plain error")
	}
}

func TestConstructorsCarryStatusAndRetryability(t *testing.T) {
	cases := []struct {
		name       string
		err        *AppError
		wantCode   ErrorCode
		wantStatus int
		retryable  bool
	}{
		{"transcription", TranscriptionFailed("x", nil), ErrCodeTranscriptionFailed, http.StatusBadGateway, false},
		{"speakers", SpeakerSubmissionInvalid("x"), ErrCodeSpeakerSubmissionInvalid, http.StatusBadRequest, false},
		{"recap", RecapGenerationFailed(nil), ErrCodeRecapGenerationFailed, http.StatusBadGateway, false},
		{"wiki", WikiPushFailed("x", nil), ErrCodeWikiPushFailed, http.StatusBadGateway, true},
		{"persistence", PersistenceFailed("write", nil), ErrCodePersistenceFailed, http.StatusInternalServerError, false},
		{"not found", NotFound("session", "abc"), ErrCodeNotFound, http.StatusNotFound, false},
		{"conflict", Conflict("busy"), ErrCodeConflict, http.StatusConflict, false},
		{"invalid", InvalidInput("bad"), ErrCodeInvalidInput, http.StatusBadRequest, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", tc.err.Code, tc.wantCode)
			}
			if tc.err.HTTPStatus != tc.wantStatus {
				t.Errorf("status = %d, want %d", tc.err.HTTPStatus, tc.wantStatus)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("retryable = %v, want %v", tc.err.Retryable, tc.retryable)
			}
		})
	}
}

func TestToResponseDropsCause(t *testing.T) {
	err := PersistenceFailed("write metadata", errors.New("disk full at /var/lib"))
	resp := err.ToResponse()

	if resp.Error.Code != ErrCodePersistenceFailed {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if strings.Contains(resp.Error.Message, "disk full") {
		t.Error("cause detail leaked into client response")
	}
}
