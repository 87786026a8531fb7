package recap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperr "github.com/dndscribe/scribe/internal/errors"
	"github.com/dndscribe/scribe/internal/transcript"
)

type stubProvider struct {
	resp    *CompletionResponse
	err     error
	lastReq CompletionRequest
}

func (s *stubProvider) Name() string                       { return "stub" }
func (s *stubProvider) IsAvailable(_ context.Context) bool { return true }
func (s *stubProvider) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.lastReq = req
	return s.resp, s.err
}

func sessionTranscript() *transcript.Transcript {
	return transcript.New([]transcript.Segment{
		{Start: 0, End: 4, Text: "You see a dragon.", Speaker: "SPEAKER_00", SpeakerName: "DM"},
		{Start: 5, End: 8, Text: "I hide.", Speaker: "SPEAKER_01"},
		{Start: 9, End: 10, Text: "  ", Speaker: "SPEAKER_01"},
	}, 10)
}

func TestGenerateFormatsDialogue(t *testing.T) {
	provider := &stubProvider{resp: &CompletionResponse{Content: "The party fled a dragon."}}
	gen := NewGenerator(provider, "You are a chronicler.", "test-model")

	got, err := gen.Generate(context.Background(), sessionTranscript())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "The party fled a dragon." {
		t.Errorf("recap = %q", got)
	}

	if provider.lastReq.Model != "test-model" {
		t.Errorf("model = %q", provider.lastReq.Model)
	}
	if provider.lastReq.Messages[0].Role != "system" ||
		provider.lastReq.Messages[0].Content != "You are a chronicler." {
		t.Errorf("system message = %+v", provider.lastReq.Messages[0])
	}
	user := provider.lastReq.Messages[1].Content
	if !strings.Contains(user, "DM: You see a dragon.") {
		t.Errorf("named speaker line missing:\n%s", user)
	}
	// Unnamed speakers use their raw label; blank lines are dropped.
	if !strings.Contains(user, "SPEAKER_01: I hide.") {
		t.Errorf("raw label line missing:\n%s", user)
	}
	if strings.Count(user, "SPEAKER_01") != 1 {
		t.Errorf("blank segment leaked into dialogue:\n%s", user)
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("model overloaded")}
	gen := NewGenerator(provider, "", "")

	_, err := gen.Generate(context.Background(), sessionTranscript())
	if !apperr.HasCode(err, apperr.ErrCodeRecapGenerationFailed) {
		t.Fatalf("err = %v, want recap generation failed", err)
	}
}

func TestGenerateEmptyCompletion(t *testing.T) {
	provider := &stubProvider{resp: &CompletionResponse{Content: "   "}}
	gen := NewGenerator(provider, "", "")

	_, err := gen.Generate(context.Background(), sessionTranscript())
	if !apperr.HasCode(err, apperr.ErrCodeRecapGenerationFailed) {
		t.Fatalf("err = %v, want recap generation failed", err)
	}
}

func TestChatProviderComplete(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "llama3",
			"choices": [{"message": {"role": "assistant", "content": "A fine recap."}}]
		}`))
	}))
	defer srv.Close()

	p := NewChatProvider(ChatConfig{BaseURL: srv.URL, Model: "llama3", APIKey: "k"})
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "A fine recap." || resp.Model != "llama3" {
		t.Errorf("resp = %+v", resp)
	}
	if got.Model != "llama3" {
		t.Errorf("request model = %q (config default not applied)", got.Model)
	}
	if auth != "Bearer k" {
		t.Errorf("authorization = %q", auth)
	}
}

func TestChatProviderNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model": "x", "choices": []}`))
	}))
	defer srv.Close()

	p := NewChatProvider(ChatConfig{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), CompletionRequest{})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("err = %v", err)
	}
}
