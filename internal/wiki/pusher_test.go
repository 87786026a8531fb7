package wiki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperr "github.com/dndscribe/scribe/internal/errors"
	"github.com/dndscribe/scribe/internal/session"
	"github.com/dndscribe/scribe/internal/transcript"
)

func storeWithSession(t *testing.T) (*session.Store, string) {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	id := "2026-03-14-strahd"
	tr := transcript.New([]transcript.Segment{
		{Start: 0, End: 4, Text: "Welcome to Barovia.", Speaker: "SPEAKER_00", SpeakerName: "DM"},
		{Start: 5, End: 8, Text: "I don't like this fog.", Speaker: "SPEAKER_01", SpeakerName: "Thistle"},
	}, 8)
	if err := store.SaveTranscript(id, tr, nil, false); err != nil {
		t.Fatal(err)
	}
	meta := session.Meta{
		Name:      "Curse of Strahd",
		Date:      "2026-03-14",
		Speakers:  transcript.SpeakerMap{"SPEAKER_00": "DM", "SPEAKER_01": "Thistle"},
		Status:    session.StatusCompleted,
		CreatedAt: time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC),
	}
	if err := store.SaveMeta(id, meta); err != nil {
		t.Fatal(err)
	}
	return store, id
}

func TestPushDeliversPayload(t *testing.T) {
	store, id := storeWithSession(t)

	var got Payload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/ingest" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ingested", "url": "/wiki/sessions/strahd"}`))
	}))
	defer srv.Close()

	pusher := NewPusher(Config{URL: srv.URL + "/", APIKey: "secret-key"}, store)
	result, err := pusher.Push(context.Background(), id)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}

	if auth != "Bearer secret-key" {
		t.Errorf("authorization = %q", auth)
	}
	if got.InterfaceVersion != "1.0" {
		t.Errorf("interface_version = %q, want 1.0", got.InterfaceVersion)
	}
	if got.Session.Name != "Curse of Strahd" || got.Session.CreatedAt != "2026-03-14T19:00:00Z" {
		t.Errorf("session = %+v", got.Session)
	}
	if got.Transcript.SegmentCount != 2 || got.Transcript.Segments[0].SpeakerName != "DM" {
		t.Errorf("transcript = %+v", got.Transcript)
	}
	if result["url"] != "/wiki/sessions/strahd" {
		t.Errorf("result = %v", result)
	}
}

func TestPushVersionRejection(t *testing.T) {
	store, id := storeWithSession(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "unsupported interface_version"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	pusher := NewPusher(Config{URL: srv.URL}, store)
	_, err := pusher.Push(context.Background(), id)

	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.ErrCodeWikiPushFailed {
		t.Fatalf("err = %v, want wiki push failed", err)
	}
	if !appErr.Retryable {
		t.Error("wiki push errors should be marked retryable for the caller")
	}

	// A rejected push leaves the session untouched.
	meta, err := store.LoadMeta(id)
	if err != nil || meta.Status != session.StatusCompleted {
		t.Errorf("session altered by failed push: %+v, %v", meta, err)
	}
}

func TestPushUnreachableWiki(t *testing.T) {
	store, id := storeWithSession(t)

	pusher := NewPusher(Config{URL: "http://127.0.0.1:1"}, store)
	_, err := pusher.Push(context.Background(), id)
	if !apperr.HasCode(err, apperr.ErrCodeWikiPushFailed) {
		t.Fatalf("err = %v, want wiki push failed", err)
	}
}

func TestPushWithoutURL(t *testing.T) {
	store, id := storeWithSession(t)

	pusher := NewPusher(Config{}, store)
	if _, err := pusher.Push(context.Background(), id); err == nil {
		t.Error("push without URL succeeded")
	}
}

func TestPushMissingSession(t *testing.T) {
	store, _ := storeWithSession(t)

	pusher := NewPusher(Config{URL: "http://example.invalid"}, store)
	_, err := pusher.Push(context.Background(), "no-such-session")
	if !apperr.HasCode(err, apperr.ErrCodeNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestPushAcceptedWithUnparseableBody(t *testing.T) {
	store, id := storeWithSession(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	pusher := NewPusher(Config{URL: srv.URL}, store)
	// A 2xx response counts as delivered even when the body is not JSON.
	if _, err := pusher.Push(context.Background(), id); err != nil {
		t.Errorf("Push: %v", err)
	}
}
