package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"voice-rag/internal/rag"
	"voice-rag/internal/store"
)

func TestErrorKindStatuses(t *testing.T) {
	cases := []struct {
		kind   ErrorKind
		status int
		label  string
	}{
		{KindValidation, http.StatusBadRequest, "validation"},
		{KindNotFound, http.StatusNotFound, "not_found"},
		{KindUpstream, http.StatusBadGateway, "upstream_failure"},
		{KindStorage, http.StatusInternalServerError, "storage_failure"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, errE(c.kind, "boom", nil))
		assert.Equal(t, c.status, rec.Code)
		assert.Contains(t, rec.Body.String(), c.label)
	}
}

func TestClassifySentinelErrors(t *testing.T) {
	assert.Equal(t, KindNotFound, classify(fmt.Errorf("lookup: %w", store.ErrNotFound)).kind)
	assert.Equal(t, KindValidation, classify(fmt.Errorf("check: %w", rag.ErrModelMismatch)).kind)
	assert.Equal(t, KindUpstream, classify(fmt.Errorf("something broke")).kind)

	wrapped := fmt.Errorf("outer: %w", errE(KindStorage, "disk", nil))
	assert.Equal(t, KindStorage, classify(wrapped).kind)
}
