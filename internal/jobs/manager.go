package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperr "github.com/dndscribe/scribe/internal/errors"
	"github.com/dndscribe/scribe/internal/logger"
	"github.com/dndscribe/scribe/internal/progress"
	"github.com/dndscribe/scribe/internal/recap"
	"github.com/dndscribe/scribe/internal/session"
	"github.com/dndscribe/scribe/internal/transcribe"
	"github.com/dndscribe/scribe/internal/transcript"
	"github.com/dndscribe/scribe/internal/wiki"
)

// VocabSource supplies the current vocabulary terms at job start.
type VocabSource interface {
	Terms() []string
}

// Config holds the pipeline configuration a Manager applies to every run.
type Config struct {
	// Build configures the transcription/diarization backends per run.
	Build transcribe.Options
	// Vocab, when set, overrides Build.Vocabulary with live terms.
	Vocab VocabSource
	// Formats are the transcript renderings to persist alongside JSON.
	Formats []string
	// Timestamps toggles [MM:SS] prefixes in the text rendering.
	Timestamps bool
	// DefaultSpeakers pre-resolves raw labels, e.g. a recurring party.
	DefaultSpeakers transcript.SpeakerMap
	// AutoPush pushes to the wiki on completion, fire-and-forget.
	AutoPush bool
}

// Params describes one job submission.
type Params struct {
	SessionName string
	AudioPath   string
	SkipRecap   bool
	// SkipNaming bypasses the awaiting_speakers suspension even when
	// unresolved speaker labels remain.
	SkipNaming bool
}

// Manager runs jobs. Compute-heavy stages are serialized: submitting a job
// while another is active is rejected with a conflict, a deliberate policy
// since the transcription backends hold the GPU.
type Manager struct {
	mu   sync.Mutex
	jobs map[string]*Job

	builder     *transcribe.Builder
	store       *session.Store
	recaps      *recap.Generator
	pusher      *wiki.Pusher
	broadcaster *progress.Broadcaster
	cfg         Config
	log         *logger.Logger
}

// NewManager creates a job manager. recaps and pusher may be nil when the
// corresponding feature is not configured.
func NewManager(builder *transcribe.Builder, store *session.Store, recaps *recap.Generator,
	pusher *wiki.Pusher, broadcaster *progress.Broadcaster, cfg Config) *Manager {
	return &Manager{
		jobs:        make(map[string]*Job),
		builder:     builder,
		store:       store,
		recaps:      recaps,
		pusher:      pusher,
		broadcaster: broadcaster,
		cfg:         cfg,
		log:         logger.WithComponent("jobs"),
	}
}

// Submit creates and starts a new job. It returns a conflict error when
// another job is still active.
func (m *Manager) Submit(params Params) (string, error) {
	if strings.TrimSpace(params.SessionName) == "" {
		return "", apperr.InvalidInput("session name is required")
	}
	if params.AudioPath == "" {
		return "", apperr.InvalidInput("audio file is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if !job.Stage.Terminal() {
			return "", apperr.Conflict("a job is already running; only one transcription at a time")
		}
	}

	now := time.Now()
	job := &Job{
		ID:          newJobID(),
		SessionID:   m.store.NewSessionID(params.SessionName, now),
		SessionName: params.SessionName,
		AudioPath:   params.AudioPath,
		SkipRecap:   params.SkipRecap,
		SkipNaming:  params.SkipNaming,
		Stage:       StageQueued,
		Message:     "Queued",
		CreatedAt:   now,
		resume:      make(chan speakerInput, 1),
	}
	m.jobs[job.ID] = job

	go m.run(job)

	m.log.Info("job submitted", logger.Fields(
		"job_id", job.ID, "session_id", job.SessionID, "audio", params.AudioPath))
	return job.ID, nil
}

// Get returns a snapshot of a job.
func (m *Manager) Get(id string) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return View{}, apperr.NotFound("job", id)
	}
	return job.view(), nil
}

// List returns snapshots of all known jobs, newest first.
func (m *Manager) List() []View {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := make([]View, 0, len(m.jobs))
	for _, job := range m.jobs {
		views = append(views, job.view())
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views
}

// SubmitSpeakers resumes a job suspended at awaiting_speakers. Exactly one
// submission is accepted per job; any further submission, or a submission
// while the job is in another state, is rejected without altering the job.
func (m *Manager) SubmitSpeakers(id string, names transcript.SpeakerMap, skipRecap bool) error {
	if names == nil {
		return apperr.SpeakerSubmissionInvalid("speaker map is missing")
	}
	for label := range names {
		if strings.TrimSpace(label) == "" {
			return apperr.SpeakerSubmissionInvalid("speaker map contains an empty label")
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return apperr.NotFound("job", id)
	}
	if job.Stage != StageAwaitingSpeakers || job.resumed {
		return apperr.SpeakerSubmissionInvalid(
			fmt.Sprintf("job %s is not awaiting speaker names", id))
	}

	job.resumed = true
	job.resume <- speakerInput{names: names, skipRecap: skipRecap}
	return nil
}

// run drives one job through its stages on a dedicated goroutine.
func (m *Manager) run(job *Job) {
	defer func() {
		if r := recover(); r != nil {
			m.fail(job, apperr.Internal(fmt.Errorf("panic: %v", r)))
		}
	}()

	ctx := context.Background()
	m.publish(job, StageQueued, "Queued", percentQueued)

	opts := m.cfg.Build
	if m.cfg.Vocab != nil {
		opts.Vocabulary = m.cfg.Vocab.Terms()
	}

	t, err := m.builder.Build(ctx, job.AudioPath, opts, func(stage, message string, percent int) {
		m.publish(job, Stage(stage), message, percent)
	})
	if err != nil {
		// No session has been persisted yet; the store stays untouched.
		m.fail(job, err)
		return
	}

	names := transcript.SpeakerMap{}
	for label, name := range m.cfg.DefaultSpeakers {
		names[label] = name
	}

	if len(t.UnresolvedSpeakers(names)) > 0 && !job.SkipNaming {
		m.mu.Lock()
		job.samples = t.SpeakerSamples(0)
		m.mu.Unlock()
		m.publish(job, StageAwaitingSpeakers, "Waiting for speaker identification...", percentAwaitingSpeakers)

		// Suspension point: blocks indefinitely until SubmitSpeakers
		// delivers the single accepted submission.
		input := <-job.resume
		for label, name := range input.names {
			names[label] = name
		}
		m.mu.Lock()
		job.SkipRecap = input.skipRecap
		m.mu.Unlock()
	}

	t.ApplySpeakerNames(names)

	m.publish(job, StageSaving, "Saving transcript...", percentSaving)
	if err := m.persist(job, t, names); err != nil {
		m.fail(job, err)
		return
	}

	m.mu.Lock()
	skipRecap := job.SkipRecap
	m.mu.Unlock()

	if !skipRecap && m.recaps != nil {
		m.publish(job, StageGeneratingRecap, "Generating recap...", percentGeneratingRecap)
		if recapText, err := m.recaps.Generate(ctx, t); err != nil {
			// The session is already durable; it just has no recap yet.
			m.log.Warn("recap generation failed, session saved without recap",
				logger.Fields("job_id", job.ID, "error", err.Error()))
		} else if err := m.store.SaveRecap(job.SessionID, recapText, time.Now()); err != nil {
			m.log.Warn("recap could not be saved",
				logger.Fields("job_id", job.ID, "error", err.Error()))
		}
	}

	if m.cfg.AutoPush && m.pusher != nil {
		m.publish(job, StagePushingToWiki, "Pushing to wiki...", percentPushingToWiki)
		if _, err := m.pusher.Push(ctx, job.SessionID); err != nil {
			// Fire-and-forget: a push failure never flips a completed job.
			m.log.Warn("auto-push to wiki failed",
				logger.Fields("job_id", job.ID, "session_id", job.SessionID, "error", err.Error()))
		}
	}

	m.complete(job)
}

// persist writes the transcript and session metadata. This is the
// durability point: nothing downstream proceeds without it.
func (m *Manager) persist(job *Job, t *transcript.Transcript, names transcript.SpeakerMap) error {
	if err := m.store.SaveTranscript(job.SessionID, t, m.cfg.Formats, m.cfg.Timestamps); err != nil {
		return err
	}
	meta := session.Meta{
		Name:      job.SessionName,
		Date:      job.CreatedAt.Format("2006-01-02"),
		AudioFile: filepath.Base(job.AudioPath),
		Speakers:  names,
		Status:    session.StatusCompleted,
		CreatedAt: job.CreatedAt,
	}
	return m.store.SaveMeta(job.SessionID, meta)
}

// publish records a stage transition and broadcasts exactly one progress
// event for it. Percent is clamped so it never regresses within a run.
func (m *Manager) publish(job *Job, stage Stage, message string, percent int) {
	m.mu.Lock()
	if percent < job.Percent {
		percent = job.Percent
	}
	job.Stage = stage
	job.Message = message
	job.Percent = percent
	m.mu.Unlock()

	ev := progress.Event{
		Type:    progress.EventProgress,
		Stage:   string(stage),
		Percent: percent,
		Message: message,
	}
	if stage == StageAwaitingSpeakers {
		ev.SpeakersURL = "/api/jobs/" + job.ID + "/speakers"
	}
	m.broadcaster.Publish(job.ID, ev)
}

func (m *Manager) complete(job *Job) {
	m.mu.Lock()
	job.Stage = StageCompleted
	job.Percent = percentCompleted
	job.Message = "Done!"
	m.mu.Unlock()

	m.broadcaster.Publish(job.ID, progress.Event{
		Type:       progress.EventCompleted,
		Stage:      string(StageCompleted),
		Percent:    percentCompleted,
		Message:    "Done!",
		SessionURL: "/api/sessions/" + job.SessionID,
	})
	m.log.Info("job completed", logger.Fields("job_id", job.ID, "session_id", job.SessionID))
}

// fail transitions the job to its failed terminal state. The failure message
// names the stage and cause in terms a DM can act on.
func (m *Manager) fail(job *Job, err error) {
	message := err.Error()
	if appErr, ok := apperr.As(err); ok {
		message = appErr.Message
	}

	m.mu.Lock()
	job.Stage = StageFailed
	job.Err = message
	job.Message = "Failed: " + message
	percent := job.Percent
	m.mu.Unlock()

	// If the session directory already materialized, record the failure
	// there too; before saving there is nothing on disk to update.
	if m.store.Exists(job.SessionID) {
		if meta, loadErr := m.store.LoadMeta(job.SessionID); loadErr == nil {
			meta.Status = session.StatusFailed
			if saveErr := m.store.SaveMeta(job.SessionID, meta); saveErr != nil {
				m.log.Warn("could not mark session failed",
					logger.Fields("session_id", job.SessionID, "error", saveErr.Error()))
			}
		}
	}

	m.broadcaster.Publish(job.ID, progress.Event{
		Type:    progress.EventFailed,
		Stage:   string(StageFailed),
		Percent: percent,
		Error:   message,
	})
	m.log.Error("job failed", logger.Fields("job_id", job.ID, "error", err.Error()))
}

func newJobID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
