package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

const (
	// WhisperXName is the name of the whisperX transcription backend.
	WhisperXName = "whisperx"

	defaultWhisperXURL     = "http://localhost:8387"
	defaultWhisperXTimeout = 4 * time.Hour // multi-hour session recordings
)

// WhisperXConfig holds configuration for the whisperX sidecar.
type WhisperXConfig struct {
	URL     string        `json:"url"`
	Timeout time.Duration `json:"timeout"`
}

// WhisperX implements Transcriber using a whisperX HTTP sidecar that
// transcribes and word-aligns in a single call.
type WhisperX struct {
	cfg    WhisperXConfig
	client *http.Client
}

// NewWhisperX creates a new whisperX transcription backend.
func NewWhisperX(cfg WhisperXConfig) *WhisperX {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperXURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultWhisperXTimeout
	}
	return &WhisperX{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the backend name.
func (w *WhisperX) Name() string { return WhisperXName }

// IsAvailable checks if the whisperX sidecar is reachable.
func (w *WhisperX) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.cfg.URL+"/health", http.NoBody)
	if err != nil {
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Transcribe sends an audio file to the sidecar and returns the raw
// transcription with word alignments.
func (w *WhisperX) Transcribe(ctx context.Context, req TranscriptionRequest) (*TranscriptionResult, error) {
	audioData, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	if req.Model != "" {
		_ = writer.WriteField("model", req.Model)
	}
	if req.Language != "" {
		_ = writer.WriteField("language", req.Language)
	}
	if req.Device != "" {
		_ = writer.WriteField("device", req.Device)
	}
	if req.ComputeType != "" {
		_ = writer.WriteField("compute_type", req.ComputeType)
	}
	if req.BatchSize > 0 {
		_ = writer.WriteField("batch_size", fmt.Sprintf("%d", req.BatchSize))
	}
	if req.InitialPrompt != "" {
		_ = writer.WriteField("initial_prompt", req.InitialPrompt)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL+"/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisperx request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("whisperx error (status %d): %s", resp.StatusCode, string(body))
	}

	var result whisperxResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode whisperx response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("whisperx error: %s", result.Error)
	}

	return toTranscriptionResult(&result), nil
}

// --- internal whisperX API types ---

type whisperxResponse struct {
	Segments []whisperxSegment `json:"segments"`
	Duration float64           `json:"duration"`
	Language string            `json:"language"`
	Error    string            `json:"error,omitempty"`
}

type whisperxSegment struct {
	Start float64        `json:"start"`
	End   float64        `json:"end"`
	Text  string         `json:"text"`
	Words []whisperxWord `json:"words,omitempty"`
}

type whisperxWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

func toTranscriptionResult(resp *whisperxResponse) *TranscriptionResult {
	segments := make([]RawSegment, len(resp.Segments))
	for i, seg := range resp.Segments {
		words := make([]RawWord, len(seg.Words))
		for j, w := range seg.Words {
			words[j] = RawWord{Word: w.Word, Start: w.Start, End: w.End, Score: w.Score}
		}
		segments[i] = RawSegment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
			Words: words,
		}
	}

	duration := resp.Duration
	if duration == 0 && len(resp.Segments) > 0 {
		duration = resp.Segments[len(resp.Segments)-1].End
	}

	return &TranscriptionResult{
		Segments: segments,
		Duration: duration,
		Language: resp.Language,
	}
}
