package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"demo-ingest/internal/domain"
	"demo-ingest/internal/validation"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Fields  []string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, `{"success":false,"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// respondError maps service errors to status codes. Unexpected errors are
// logged and reported without their detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		batchErr   *validation.BatchError
		unknownErr *validation.UnknownEventError
		badReq     *badRequestError
	)
	switch {
	case errors.As(err, &batchErr):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Fields: batchErr.FieldNames()})
	case errors.As(err, &unknownErr), errors.As(err, &badReq):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrMatchNotFound),
		errors.Is(err, domain.ErrGroupNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrJobTerminal),
		errors.Is(err, domain.ErrDuplicateMatch),
		errors.Is(err, domain.ErrTeamConflict),
		errors.Is(err, domain.ErrGroupExists):
		respondJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads at most limit bytes of JSON from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) == 0 {
		return badRequest("request body is empty")
	}
	return decodeBytes(body, v)
}

func decodeBytes(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
