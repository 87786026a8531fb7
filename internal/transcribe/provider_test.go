package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.wav")
	if err := os.WriteFile(path, []byte("RIFFfakeaudio"), 0o640); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWhisperXTranscribe(t *testing.T) {
	var gotFields map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/transcribe":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			gotFields = map[string]string{}
			for key := range r.MultipartForm.Value {
				gotFields[key] = r.FormValue(key)
			}
			if _, _, err := r.FormFile("audio"); err != nil {
				t.Errorf("audio part missing: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"segments": [
					{"start": 0, "end": 2.5, "text": "Roll for initiative.",
					 "words": [{"word": "Roll", "start": 0, "end": 0.3, "score": 0.99}]}
				],
				"language": "en"
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	wx := NewWhisperX(WhisperXConfig{URL: srv.URL})
	if !wx.IsAvailable(context.Background()) {
		t.Fatal("IsAvailable = false against healthy sidecar")
	}

	result, err := wx.Transcribe(context.Background(), TranscriptionRequest{
		AudioPath:     writeTestAudio(t),
		Model:         "large-v3",
		Language:      "en",
		BatchSize:     4,
		InitialPrompt: "Thistle, Barovia",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if len(result.Segments) != 1 || result.Segments[0].Text != "Roll for initiative." {
		t.Errorf("segments = %+v", result.Segments)
	}
	// Missing duration falls back to the last segment end.
	if result.Duration != 2.5 {
		t.Errorf("duration = %v, want 2.5", result.Duration)
	}
	if gotFields["model"] != "large-v3" || gotFields["initial_prompt"] != "Thistle, Barovia" {
		t.Errorf("form fields = %v", gotFields)
	}
	if gotFields["batch_size"] != "4" {
		t.Errorf("batch_size = %q", gotFields["batch_size"])
	}
}

func TestWhisperXErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"segments": [], "error": "could not decode audio stream"}`))
	}))
	defer srv.Close()

	wx := NewWhisperX(WhisperXConfig{URL: srv.URL})
	_, err := wx.Transcribe(context.Background(), TranscriptionRequest{AudioPath: writeTestAudio(t)})
	if err == nil || !strings.Contains(err.Error(), "could not decode audio stream") {
		t.Errorf("err = %v", err)
	}
}

func TestWhisperXHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	wx := NewWhisperX(WhisperXConfig{URL: srv.URL})
	_, err := wx.Transcribe(context.Background(), TranscriptionRequest{AudioPath: writeTestAudio(t)})
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Errorf("err = %v", err)
	}
}

func TestPyannoteDiarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/diarize" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("min_speakers"); got != "2" {
			t.Errorf("min_speakers = %q", got)
		}
		if got := r.FormValue("max_speakers"); got != "5" {
			t.Errorf("max_speakers = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"segments": [
				{"speaker_id": "SPEAKER_00", "start_time": 0, "end_time": 4.5},
				{"speaker_id": "SPEAKER_01", "start_time": 4.5, "end_time": 9}
			],
			"num_speakers": 2
		}`))
	}))
	defer srv.Close()

	py := NewPyannote(PyannoteConfig{BaseURL: srv.URL})
	result, err := py.Diarize(context.Background(), DiarizationRequest{
		AudioPath:   writeTestAudio(t),
		MinSpeakers: 2,
		MaxSpeakers: 5,
	})
	if err != nil {
		t.Fatalf("Diarize: %v", err)
	}

	if result.NumSpeakers != 2 || len(result.Turns) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Turns[0].Speaker != "SPEAKER_00" || result.Turns[0].End != 4.5 {
		t.Errorf("first turn = %+v", result.Turns[0])
	}
}

func TestPyannoteUnreachable(t *testing.T) {
	py := NewPyannote(PyannoteConfig{BaseURL: "http://127.0.0.1:1"})
	if py.IsAvailable(context.Background()) {
		t.Error("IsAvailable = true against closed port")
	}
	_, err := py.Diarize(context.Background(), DiarizationRequest{AudioPath: writeTestAudio(t)})
	if err == nil {
		t.Error("Diarize succeeded against closed port")
	}
}
