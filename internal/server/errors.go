package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"voice-rag/internal/rag"
	"voice-rag/internal/store"
)

// ErrorKind tags a failure with its cause so the boundary can map each to
// a distinct status instead of a catch-all 500.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1 // bad input from the client
	KindNotFound                        // unknown collection
	KindUpstream                        // embedding/generation/transcription/synthesis call failed
	KindStorage                         // index read/write failed
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream_failure"
	case KindStorage:
		return "storage_failure"
	default:
		return "internal"
	}
}

func (k ErrorKind) status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	case KindStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

type apiError struct {
	kind ErrorKind
	msg  string
	err  error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *apiError) Unwrap() error { return e.err }

func errE(kind ErrorKind, msg string, err error) *apiError {
	return &apiError{kind: kind, msg: msg, err: err}
}

// classify maps errors from the pipeline layers that don't carry a kind of
// their own.
func classify(err error) *apiError {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, store.ErrNotFound):
		return errE(KindNotFound, "collection not found", err)
	case errors.Is(err, rag.ErrModelMismatch):
		return errE(KindValidation, "embedding model mismatch", err)
	default:
		return errE(KindUpstream, "request failed", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	ae := classify(err)
	log.Error().Err(err).Str("kind", ae.kind.String()).Msg("request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.kind.status())
	json.NewEncoder(w).Encode(map[string]string{
		"error": ae.msg,
		"kind":  ae.kind.String(),
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
