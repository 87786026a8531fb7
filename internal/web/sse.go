package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dndscribe/scribe/internal/logger"
)

const keepAliveInterval = 30 * time.Second

// streamJobEvents streams a job's progress log over SSE. The stream replays
// retained history first, then delivers live events, and ends after the
// terminal event. Unknown job ids yield an empty stream that stays open until
// the client disconnects or the job appears; clients that want a hard check
// should GET the job first.
func (s *Server) streamJobEvents(c *gin.Context) {
	jobID := c.Param("id")
	w := c.Writer

	flusher, ok := w.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming not supported")
		return
	}

	// SSE connections outlive any write timeout on the server.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.log.Warn("could not disable write deadline",
			logger.Fields("job_id", jobID, "error", err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.app.Broadcaster.Subscribe(jobID)
	defer s.app.Broadcaster.Unsubscribe(jobID, sub)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-sub.Events():
			if !ok {
				// Terminal event delivered, stream is complete.
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("could not encode event",
					logger.Fields("job_id", jobID, "error", err.Error()))
				continue
			}
			fmt.Fprintf(w, "event: %s\n", ev.Type)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

		case <-keepAlive.C:
			// SSE comment line, keeps proxies from idling the connection out.
			fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}
