package web

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperr "github.com/dndscribe/scribe/internal/errors"
	"github.com/dndscribe/scribe/internal/jobs"
	"github.com/dndscribe/scribe/internal/logger"
	"github.com/dndscribe/scribe/internal/transcript"
)

var audioExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".flac": true,
	".ogg": true, ".opus": true, ".aac": true, ".webm": true,
}

// --- Jobs ---

// createJob starts a transcription job from an uploaded audio file or an
// existing recording in the recordings directory.
func (s *Server) createJob(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("session_name"))
	if name == "" {
		respondWithError(c, apperr.InvalidInput("session_name is required"))
		return
	}
	skipRecap := c.PostForm("skip_recap") == "true"

	audioPath, err := s.resolveAudio(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id, err := s.app.Manager.Submit(jobs.Params{
		SessionName: name,
		AudioPath:   audioPath,
		SkipRecap:   skipRecap,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	view, err := s.app.Manager.Get(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondAccepted(c, view)
}

// resolveAudio returns the path of the audio to transcribe, either by saving
// an uploaded file into the recordings directory or by resolving the name of
// an existing recording.
func (s *Server) resolveAudio(c *gin.Context) (string, error) {
	if file, err := c.FormFile("audio"); err == nil {
		return s.saveUpload(c, file)
	}

	recording := c.PostForm("recording")
	if recording == "" {
		return "", apperr.InvalidInput("provide an audio upload or a recording name")
	}
	if recording != filepath.Base(recording) {
		return "", apperr.InvalidInput("recording name must not contain path separators")
	}
	path := filepath.Join(s.app.RecordingsDir, recording)
	if _, err := os.Stat(path); err != nil {
		return "", apperr.NotFound("recording", recording)
	}
	return path, nil
}

func (s *Server) saveUpload(c *gin.Context, file *multipart.FileHeader) (string, error) {
	name := filepath.Base(file.Filename)
	if !audioExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", apperr.InvalidInput(fmt.Sprintf("unsupported audio file type: %s", name))
	}
	if err := os.MkdirAll(s.app.RecordingsDir, 0o750); err != nil {
		return "", apperr.PersistenceFailed("create recordings directory", err)
	}

	path := filepath.Join(s.app.RecordingsDir, name)
	if _, err := os.Stat(path); err == nil {
		// Keep existing recordings; disambiguate with an upload timestamp.
		ext := filepath.Ext(name)
		path = filepath.Join(s.app.RecordingsDir, fmt.Sprintf("%s-%d%s",
			strings.TrimSuffix(name, ext), time.Now().Unix(), ext))
	}
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", apperr.PersistenceFailed("save uploaded audio", err)
	}
	s.log.Info("recording uploaded", logger.Fields("path", path, "bytes", file.Size))
	return path, nil
}

func (s *Server) listJobs(c *gin.Context) {
	respondOK(c, s.app.Manager.List())
}

func (s *Server) getJob(c *gin.Context) {
	view, err := s.app.Manager.Get(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondOK(c, view)
}

type speakersRequest struct {
	Speakers  map[string]string `json:"speakers" binding:"required"`
	SkipRecap bool              `json:"skip_recap"`
}

// submitSpeakers resumes a job suspended for speaker naming.
func (s *Server) submitSpeakers(c *gin.Context) {
	var req speakersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperr.SpeakerSubmissionInvalid(err.Error()))
		return
	}
	if err := s.app.Manager.SubmitSpeakers(c.Param("id"), transcript.SpeakerMap(req.Speakers), req.SkipRecap); err != nil {
		respondWithError(c, err)
		return
	}
	respondAccepted(c, gin.H{"status": "resumed"})
}

// --- Sessions ---

func (s *Server) listSessions(c *gin.Context) {
	sessions, err := s.app.Store.List()
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondOK(c, sessions)
}

type sessionDetail struct {
	ID         string                 `json:"id"`
	Meta       any                    `json:"meta"`
	Transcript *transcript.Transcript `json:"transcript,omitempty"`
	Recap      string                 `json:"recap,omitempty"`
}

func (s *Server) getSession(c *gin.Context) {
	id := c.Param("id")
	sess, err := s.app.Store.Get(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	detail := sessionDetail{ID: sess.ID, Meta: sess.Meta}
	if sess.HasTranscript {
		if t, err := s.app.Store.LoadTranscript(id); err == nil {
			detail.Transcript = t
		}
	}
	if sess.HasRecap {
		if recapText, err := s.app.Store.LoadRecap(id); err == nil {
			detail.Recap = recapText
		}
	}
	respondOK(c, detail)
}

// updateSessionSpeakers renames speakers on a saved session and re-renders
// the transcript files.
func (s *Server) updateSessionSpeakers(c *gin.Context) {
	var req speakersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperr.InvalidInput(err.Error()))
		return
	}

	id := c.Param("id")
	t, err := s.app.Store.LoadTranscript(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	meta, err := s.app.Store.LoadMeta(id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	names := meta.Speakers
	if names == nil {
		names = transcript.SpeakerMap{}
	}
	for label, name := range req.Speakers {
		names[label] = name
	}

	t.ClearSpeakerNames()
	t.ApplySpeakerNames(names)

	if err := s.app.Store.SaveTranscript(id, t, s.app.Output.Formats, s.app.Output.Timestamps); err != nil {
		respondWithError(c, err)
		return
	}
	meta.Speakers = names
	if err := s.app.Store.SaveMeta(id, meta); err != nil {
		respondWithError(c, err)
		return
	}
	respondOK(c, gin.H{"speakers": names})
}

// regenerateRecap rebuilds the recap for a saved session.
func (s *Server) regenerateRecap(c *gin.Context) {
	if s.app.Recaps == nil {
		respondWithError(c, apperr.InvalidInput("recap generation is not configured"))
		return
	}

	id := c.Param("id")
	t, err := s.app.Store.LoadTranscript(id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	recapText, err := s.app.Recaps.Generate(c.Request.Context(), t)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := s.app.Store.SaveRecap(id, recapText, time.Now()); err != nil {
		respondWithError(c, err)
		return
	}
	respondOK(c, gin.H{"recap": recapText})
}

// pushSession pushes a saved session to the wiki on demand.
func (s *Server) pushSession(c *gin.Context) {
	if s.app.Pusher == nil {
		respondWithError(c, apperr.WikiPushFailed("no wiki URL configured", nil))
		return
	}
	result, err := s.app.Pusher.Push(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondOK(c, result)
}

func (s *Server) listSessionFiles(c *gin.Context) {
	files, err := s.app.Store.Files(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondOK(c, files)
}

func (s *Server) downloadSessionFile(c *gin.Context) {
	path, err := s.app.Store.FilePath(c.Param("id"), c.Param("filename"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// --- Recordings ---

type recordingInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func (s *Server) listRecordings(c *gin.Context) {
	entries, err := os.ReadDir(s.app.RecordingsDir)
	if os.IsNotExist(err) {
		respondOK(c, []recordingInfo{})
		return
	}
	if err != nil {
		respondWithError(c, apperr.PersistenceFailed("read recordings directory", err))
		return
	}

	recordings := make([]recordingInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		recordings = append(recordings, recordingInfo{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	respondOK(c, recordings)
}

// --- Vocabulary ---

func (s *Server) getVocabulary(c *gin.Context) {
	respondOK(c, gin.H{"vocabulary": s.app.Vocabulary.Terms()})
}

type vocabularyRequest struct {
	Vocabulary []string `json:"vocabulary" binding:"required"`
}

func (s *Server) updateVocabulary(c *gin.Context) {
	var req vocabularyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperr.InvalidInput(err.Error()))
		return
	}
	if err := s.app.Vocabulary.Replace(req.Vocabulary); err != nil {
		respondWithError(c, apperr.PersistenceFailed("save vocabulary", err))
		return
	}
	respondOK(c, gin.H{"vocabulary": s.app.Vocabulary.Terms()})
}
