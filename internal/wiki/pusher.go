// Package wiki pushes completed sessions to the campaign wiki's ingest
// endpoint. Delivery only: the wiki owns duplicate detection, and retry is a
// caller concern.
package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperr "github.com/dndscribe/scribe/internal/errors"
	"github.com/dndscribe/scribe/internal/logger"
	"github.com/dndscribe/scribe/internal/session"
	"github.com/dndscribe/scribe/internal/transcript"
)

// InterfaceVersion is the payload version this side always sends. Receivers
// reject unknown versions; rejection is reported, never retried here.
const InterfaceVersion = "1.0"

const defaultPushTimeout = 30 * time.Second

// Payload is the ingest payload consumed by the wiki.
type Payload struct {
	InterfaceVersion string            `json:"interface_version"`
	Session          PayloadSession    `json:"session"`
	Transcript       PayloadTranscript `json:"transcript"`
}

// PayloadSession is the session metadata portion of the payload.
type PayloadSession struct {
	Name      string                `json:"name"`
	Date      string                `json:"date"`
	Speakers  transcript.SpeakerMap `json:"speakers"`
	Status    session.Status        `json:"status"`
	CreatedAt string                `json:"created_at"`
}

// PayloadTranscript is the transcript portion of the payload. Word-level
// timing and confidence scores never appear here; they stay in the locally
// persisted transcript only.
type PayloadTranscript struct {
	Segments     []transcript.Segment `json:"segments"`
	Duration     float64              `json:"duration"`
	SegmentCount int                  `json:"segment_count"`
}

// Config holds wiki push configuration.
type Config struct {
	// URL is the wiki base URL, e.g. "http://wiki:8080".
	URL string
	// APIKey is an optional Bearer token.
	APIKey string
	// Timeout bounds one push attempt.
	Timeout time.Duration
}

// Pusher delivers completed sessions to the wiki. One attempt per call; a
// failure is a distinct WikiPushFailed error and never alters the session.
type Pusher struct {
	cfg    Config
	store  *session.Store
	client *http.Client
	log    *logger.Logger
}

// NewPusher creates a wiki pusher reading sessions from the given store.
func NewPusher(cfg Config, store *session.Store) *Pusher {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultPushTimeout
	}
	return &Pusher{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.WithComponent("wiki"),
	}
}

// BuildPayload assembles the ingest payload for a persisted session.
func (p *Pusher) BuildPayload(id string) (*Payload, error) {
	meta, err := p.store.LoadMeta(id)
	if err != nil {
		return nil, err
	}
	t, err := p.store.LoadTranscript(id)
	if err != nil {
		return nil, err
	}

	createdAt := ""
	if !meta.CreatedAt.IsZero() {
		createdAt = meta.CreatedAt.Format(time.RFC3339)
	}

	return &Payload{
		InterfaceVersion: InterfaceVersion,
		Session: PayloadSession{
			Name:      meta.Name,
			Date:      meta.Date,
			Speakers:  meta.Speakers,
			Status:    meta.Status,
			CreatedAt: createdAt,
		},
		Transcript: PayloadTranscript{
			Segments:     t.Segments,
			Duration:     t.Duration,
			SegmentCount: t.SegmentCount,
		},
	}, nil
}

// Result is the wiki's response to a successful push.
type Result map[string]any

// Push builds the payload for a session and POSTs it to the wiki. The push
// is independent of any job lifetime; the session on disk is never modified.
func (p *Pusher) Push(ctx context.Context, id string) (Result, error) {
	if p.cfg.URL == "" {
		return nil, apperr.WikiPushFailed("no wiki URL configured", nil)
	}

	payload, err := p.BuildPayload(id)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.WikiPushFailed("could not encode payload", err)
	}

	endpoint := strings.TrimRight(p.cfg.URL, "/") + "/api/sessions/ingest"
	p.log.Info("pushing session to wiki",
		logger.Fields("session_id", id, "endpoint", endpoint, "bytes", len(body)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.WikiPushFailed("could not build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperr.WikiPushFailed("the wiki could not be reached", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.WikiPushFailed(
			fmt.Sprintf("the wiki rejected the push (status %d)", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(respBody))))
	}

	result := Result{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		// A 2xx with an unreadable body still counts as delivered.
		p.log.Warn("wiki response was not valid JSON", logger.Fields("session_id", id))
		return Result{"status": "ok"}, nil
	}
	return result, nil
}
