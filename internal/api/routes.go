package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gva-control/gvc/internal/sequence"
	"github.com/gva-control/gvc/internal/state"
)

// handleTrigger executes the emergency stop sequence.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	result, err := s.sequencer.Trigger(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, sequence.ErrBusy):
			WriteError(w, r, "BUSY", "Emergency sequence already in flight or unresolved", nil)
		case errors.Is(err, sequence.ErrStopFailed):
			var stopErr *sequence.StopFailedError
			details := any(nil)
			if errors.As(err, &stopErr) {
				details = map[string]any{"step": stopErr.Step, "cause": stopErr.Cause.Error()}
			}
			WriteError(w, r, "STOP_FAILED", "Emergency stop sequence failed", details)
		default:
			WriteError(w, r, "INTERNAL", err.Error(), nil)
		}
		return
	}
	WriteSuccess(w, r, stopResultBody(result, s.sequencer.IsRunning()))
}

// handleReset executes the operator recovery sequence.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	result, err := s.sequencer.Reset(r.Context())
	if err != nil {
		var invalid *state.InvalidTransitionError
		if errors.As(err, &invalid) {
			WriteError(w, r, "INVALID_TRANSITION", "Reset requires the unit to be in EMERGENCY_STOP",
				map[string]any{"from": invalid.From, "to": invalid.To, "allowed": invalid.Allowed})
			return
		}
		WriteError(w, r, "INTERNAL", err.Error(), nil)
		return
	}
	WriteSuccess(w, r, map[string]any{
		"status":     result.Status,
		"durationMs": result.Duration.Milliseconds(),
		"ts":         result.Timestamp.UTC().Format(time.RFC3339Nano),
		"isRunning":  s.sequencer.IsRunning(),
	})
}

// handleStatus reports the current safety posture of the unit.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"state":     s.machine.Current(),
		"isRunning": s.sequencer.IsRunning(),
	}
	if s.relay != nil {
		body["relay"] = s.relay.Relay()
	}
	if last := s.sequencer.LastResult(); last != nil {
		body["lastResult"] = stopResultBody(last, s.sequencer.IsRunning())
	}
	WriteSuccess(w, r, body)
}

// handleHistory returns the committed transition records, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]any{"history": s.machine.History()})
}

// handleEvents serves the SSE safety event stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		WriteError(w, r, "NOT_FOUND", "Event stream not enabled", nil)
		return
	}
	// Subscribe blocks until the client disconnects.
	_ = s.hub.Subscribe(r.Context(), w, r)
}

// handleHealth reports liveness and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	})
}

func stopResultBody(result *sequence.StopResult, isRunning bool) map[string]any {
	return map[string]any{
		"status":     result.Status,
		"hal":        result.HAL,
		"state":      result.State,
		"mqtt":       result.Publish,
		"durationMs": result.Duration.Milliseconds(),
		"ts":         result.Timestamp.UTC().Format(time.RFC3339Nano),
		"isRunning":  isRunning,
	}
}
