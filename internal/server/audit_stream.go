package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleAuditStream serves Server-Sent Events for the audit pipeline,
// grounded on the teacher's planning event stream handler: a bootstrap
// message carrying the subscriber's snapshot, then one "tick" or "lag"
// event per Delivery, plus a heartbeat to keep idle connections alive.
func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.Error(w, "audit stream not configured", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.audit.Subscribe()
	defer sub.Close()

	s.log.Info().Msg("client connected to audit stream")

	bootstrap, err := json.Marshal(sub.Snapshot)
	if err == nil {
		fmt.Fprintf(w, "event: snapshot\n")
		fmt.Fprintf(w, "data: {\"seq\": %d, \"state\": %s}\n\n", sub.SnapshotSeq, bootstrap)
		flusher.Flush()
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			s.log.Info().Msg("client disconnected from audit stream")
			return

		case delivery := <-sub.C:
			if delivery.Tick != nil {
				payload, err := json.Marshal(delivery.Tick)
				if err != nil {
					s.log.Error().Err(err).Msg("failed to marshal audit tick")
					continue
				}
				fmt.Fprintf(w, "event: tick\n")
				fmt.Fprintf(w, "data: %s\n\n", payload)
			} else if delivery.Lag != nil {
				fmt.Fprintf(w, "event: lag\n")
				fmt.Fprintf(w, "data: {\"dropped\": %d}\n\n", delivery.Lag.N)
			}
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"timestamp\": %q}\n\n", time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}
