package cli

import (
	"time"

	"github.com/dndscribe/scribe/internal/config"
	"github.com/dndscribe/scribe/internal/jobs"
	"github.com/dndscribe/scribe/internal/progress"
	"github.com/dndscribe/scribe/internal/recap"
	"github.com/dndscribe/scribe/internal/session"
	"github.com/dndscribe/scribe/internal/transcribe"
	"github.com/dndscribe/scribe/internal/transcript"
	"github.com/dndscribe/scribe/internal/vocab"
	"github.com/dndscribe/scribe/internal/wiki"
)

const vocabularyFile = "vocabulary.yaml"

// Deps holds the assembled application services shared by the commands.
type Deps struct {
	Config      *config.Config
	Store       *session.Store
	Manager     *jobs.Manager
	Broadcaster *progress.Broadcaster
	Vocabulary  *vocab.Store
	Recaps      *recap.Generator
	Pusher      *wiki.Pusher
}

// BuildDeps wires the pipeline from configuration. Optional services (recap,
// wiki, diarization) stay nil when not configured.
func BuildDeps(cfg *config.Config) (*Deps, error) {
	store, err := session.NewStore(cfg.Paths.SessionsDir)
	if err != nil {
		return nil, err
	}

	vocabulary, err := vocab.New(vocabularyFile, cfg.Vocabulary)
	if err != nil {
		return nil, err
	}

	transcriber := transcribe.NewWhisperX(transcribe.WhisperXConfig{URL: cfg.Whisper.URL})

	var diarizer transcribe.Diarizer
	if cfg.Diarization.URL != "" {
		diarizer = transcribe.NewPyannote(transcribe.PyannoteConfig{BaseURL: cfg.Diarization.URL})
	}

	var recaps *recap.Generator
	if cfg.Recap.Enabled {
		provider := recap.NewChatProvider(recap.ChatConfig{
			BaseURL: cfg.Recap.BaseURL,
			Model:   cfg.Recap.Model,
			APIKey:  cfg.Recap.APIKey,
		})
		recaps = recap.NewGenerator(provider, cfg.Recap.SystemPrompt, cfg.Recap.Model)
	}

	var pusher *wiki.Pusher
	if cfg.Wiki.URL != "" {
		pusher = wiki.NewPusher(wiki.Config{
			URL:    cfg.Wiki.URL,
			APIKey: cfg.Wiki.APIKey,
		}, store)
	}

	broadcaster := progress.NewBroadcaster(progress.DefaultRetention)

	manager := jobs.NewManager(
		transcribe.NewBuilder(transcriber, diarizer),
		store, recaps, pusher, broadcaster,
		jobs.Config{
			Build: transcribe.Options{
				Model:       cfg.Whisper.Model,
				Language:    cfg.Whisper.Language,
				Device:      cfg.Whisper.Device,
				ComputeType: cfg.Whisper.ComputeType,
				BatchSize:   cfg.Whisper.BatchSize,
				MinSpeakers: cfg.Diarization.MinSpeakers,
				MaxSpeakers: cfg.Diarization.MaxSpeakers,
			},
			Vocab:           vocabulary,
			Formats:         cfg.Output.Formats,
			Timestamps:      cfg.Output.Timestamps,
			DefaultSpeakers: transcript.SpeakerMap(cfg.Speakers),
			AutoPush:        cfg.Wiki.AutoPush,
		},
	)

	return &Deps{
		Config:      cfg,
		Store:       store,
		Manager:     manager,
		Broadcaster: broadcaster,
		Vocabulary:  vocabulary,
		Recaps:      recaps,
		Pusher:      pusher,
	}, nil
}

// waitForTerminal drains a job's event stream until a terminal event arrives
// or the timeout elapses, invoking onEvent for every event.
func waitForTerminal(deps *Deps, jobID string, timeout time.Duration, onEvent func(progress.Event)) (progress.Event, bool) {
	sub := deps.Broadcaster.Subscribe(jobID)
	defer deps.Broadcaster.Unsubscribe(jobID, sub)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return progress.Event{}, false
			}
			if onEvent != nil {
				onEvent(ev)
			}
			if ev.Terminal() {
				return ev, true
			}
		case <-timer.C:
			return progress.Event{}, false
		}
	}
}
