package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"demo-ingest/internal/constants"
	"demo-ingest/internal/domain"
	"demo-ingest/internal/service"
	"demo-ingest/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type ingestResponse struct {
	Success    bool   `json:"success"`
	JobID      string `json:"job_id"`
	EventName  string `json:"event_name"`
	BatchIndex int    `json:"batch_index"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
}

// handleIngestEvents accepts either a batch envelope or a bare JSON array,
// which is treated as a single complete batch.
func (s *Server) handleIngestEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	eventName := chi.URLParam(r, "eventName")

	env, err := decodeEnvelope(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.ingestor.Ingest(r.Context(), jobID, eventName, env)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ingestResponse{
		Success:    true,
		JobID:      res.JobID,
		EventName:  string(res.EventName),
		BatchIndex: res.Batch.Index,
		Inserted:   res.Inserted,
		Duplicates: res.Duplicates,
	})
}

func decodeEnvelope(w http.ResponseWriter, r *http.Request) (validation.BatchEnvelope, error) {
	var env validation.BatchEnvelope

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, constants.MaxEventBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return env, badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return env, fmt.Errorf("failed to read request body: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		return env, badRequest("request body is empty")
	case trimmed[0] == '[':
		env.Data = trimmed
	default:
		if err := decodeBytes(trimmed, &env); err != nil {
			return env, err
		}
		if len(env.Data) == 0 {
			return env, badRequest("data is required")
		}
	}
	return env, nil
}

type matchResponse struct {
	Success bool   `json:"success"`
	MatchID int64  `json:"match_id"`
	Map     string `json:"map"`
	Hash    string `json:"match_hash,omitempty"`
}

func (s *Server) handleRegisterMatch(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	var req validation.MatchMetadata
	if err := decodeJSON(w, r, constants.MaxEventBodyBytes, &req); err != nil {
		respondError(w, r, err)
		return
	}

	match, err := s.registry.RegisterMetadata(r.Context(), jobID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := matchResponse{Success: true, MatchID: match.ID, Map: match.Map}
	if match.MatchHash != nil {
		resp.Hash = *match.MatchHash
	}
	respondJSON(w, http.StatusOK, resp)
}

type progressRequest struct {
	JobID       string `json:"job_id" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=pending processing completed failed"`
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step" validate:"max=255"`
}

type completionRequest struct {
	JobID        string  `json:"job_id" validate:"required"`
	Status       string  `json:"status" validate:"required,oneof=completed failed"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

type callbackResponse struct {
	Success bool `json:"success"`
	Ignored bool `json:"ignored,omitempty"`
}

// Progress and completion callbacks for unknown or finished jobs succeed
// with ignored set, so the parser never retries them.
func (s *Server) handleProgressCallback(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := decodeJSON(w, r, constants.MaxCallbackBodyBytes, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.validator.ValidateStruct(req, ""); err != nil {
		respondError(w, r, err)
		return
	}

	applied, err := s.tracker.UpdateProgress(r.Context(), req.JobID, domain.JobStatus(req.Status), req.Progress, req.CurrentStep)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, callbackResponse{Success: true, Ignored: !applied})
}

func (s *Server) handleCompletionCallback(w http.ResponseWriter, r *http.Request) {
	var req completionRequest
	if err := decodeJSON(w, r, constants.MaxCallbackBodyBytes, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.validator.ValidateStruct(req, ""); err != nil {
		respondError(w, r, err)
		return
	}

	applied, err := s.tracker.Complete(r.Context(), req.JobID, domain.JobStatus(req.Status), req.ErrorMessage)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, callbackResponse{Success: true, Ignored: !applied})
}

type jobResponse struct {
	JobID           string                  `json:"job_id"`
	MatchID         *int64                  `json:"match_id"`
	Status          string                  `json:"status"`
	ProgressPercent int                     `json:"progress_percent"`
	CurrentStep     string                  `json:"current_step"`
	ErrorMessage    *string                 `json:"error_message"`
	StartedAt       time.Time               `json:"started_at"`
	CompletedAt     *time.Time              `json:"completed_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
	Batches         []service.BatchProgress `json:"batches"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	job, err := s.tracker.FindByJobID(r.Context(), jobID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	batches, err := s.ingestor.Completeness(r.Context(), jobID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, jobResponse{
		JobID:           job.UUID,
		MatchID:         job.MatchID,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		CurrentStep:     job.CurrentStep,
		ErrorMessage:    job.ErrorMessage,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		UpdatedAt:       job.UpdatedAt,
		Batches:         batches,
	})
}

// handleSubmitDemo streams the "file" part of a multipart upload to disk and
// queues the job. The response is sent before the parser is contacted.
func (s *Server) handleSubmitDemo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxDemoUploadBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, r, badRequest("expected multipart/form-data: %v", err))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			respondError(w, r, badRequest("missing file part"))
			return
		}
		if err != nil {
			respondError(w, r, badRequest("invalid multipart body: %v", err))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		job, err := s.orchestrator.SubmitDemo(r.Context(), part)
		part.Close()
		if err != nil {
			respondError(w, r, err)
			return
		}

		zerolog.Ctx(r.Context()).Info().Str("job_id", job.UUID).Str("file", part.FileName()).Msg("demo accepted")
		respondJSON(w, http.StatusAccepted, map[string]any{"success": true, "job_id": job.UUID})
		return
	}
}

func (s *Server) handleReprocessMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := strconv.ParseInt(chi.URLParam(r, "matchId"), 10, 64)
	if err != nil || matchID < 1 {
		respondError(w, r, badRequest("invalid match id %q", chi.URLParam(r, "matchId")))
		return
	}

	if err := s.aggregator.Reprocess(r.Context(), matchID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"success": true, "match_id": matchID})
}
