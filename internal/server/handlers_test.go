package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-rag/internal/config"
	"voice-rag/internal/ingest"
	"voice-rag/internal/rag"
	"voice-rag/internal/store"
	"voice-rag/internal/summarizer"
)

type hashEmbedder struct{}

func (hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 64)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%64]++
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		n := float32(math.Sqrt(float64(norm)))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

type fakeGenerator struct{ calls int }

func (g *fakeGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	g.calls++
	return fmt.Sprintf("generated %d", g.calls), nil
}

type fakeTranscriber struct{ calls int }

func (f *fakeTranscriber) Transcribe(_ context.Context, wav []byte) (string, error) {
	f.calls++
	return fmt.Sprintf("transcript %d", f.calls), nil
}

type fakeSynthesizer struct{ fail bool }

func (f *fakeSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	if f.fail {
		return nil, fmt.Errorf("tts unavailable")
	}
	return []byte("RIFF" + text), nil
}

func newTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := &config.Config{}
	cfg.EmbedLLM.Model = "hash-embedder"
	cfg.InferenceLLM.Model = "fake"
	cfg.ApplyDefaults()
	cfg.Server.UploadDir = t.TempDir()
	cfg.Server.TempDir = t.TempDir()

	st, err := store.NewChromemStore("", true)
	require.NoError(t, err)
	gen := &fakeGenerator{}

	ing := ingest.NewService(st, hashEmbedder{}, "hash-embedder", &cfg.RAG)
	pipe := rag.NewPipeline(st, hashEmbedder{}, gen, "hash-embedder")
	summ := summarizer.New(gen)

	return New(cfg, st, ing, pipe, summ, &fakeTranscriber{}, &fakeSynthesizer{}), cfg
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func uploadDocument(t *testing.T, h http.Handler, content string) uploadResponse {
	t.Helper()
	body, contentType := multipartBody(t, "file", "doc.txt", content)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

const testDoc = "The warehouse in Rotterdam stores grain.\n\n" +
	"The xylophone factory in Oslo produces instruments.\n\n" +
	"The refinery in Houston processes crude oil."

func TestUploadIngestsAndSummarizes(t *testing.T) {
	srv, cfg := newTestServer(t)
	h := srv.Routes()

	resp := uploadDocument(t, h, testDoc)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.CollectionName)
	assert.Greater(t, resp.NumChunks, 0)
	assert.NotEmpty(t, resp.Summary)

	// The original document is kept, keyed by collection name.
	entries, err := os.ReadDir(cfg.Server.UploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), resp.CollectionName))
}

func TestUploadUnsupportedFormat(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	body, contentType := multipartBody(t, "file", "doc.exe", "MZ")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation")
}

func TestQueryReturnsAnswerAndProvenance(t *testing.T) {
	srv, cfg := newTestServer(t)
	h := srv.Routes()
	up := uploadDocument(t, h, testDoc)

	payload, _ := json.Marshal(queryRequest{
		CollectionName: up.CollectionName,
		Query:          "xylophone factory in Oslo",
		TopK:           2,
	})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Answer)
	require.LessOrEqual(t, len(resp.ChunkIDs), 2)
	require.NotEmpty(t, resp.ChunkIDs)
	for _, id := range resp.ChunkIDs {
		assert.True(t, strings.HasPrefix(id, up.CollectionName))
	}
	for i := 1; i < len(resp.Distances); i++ {
		assert.LessOrEqual(t, resp.Distances[i-1], resp.Distances[i])
	}

	// Synthesized answer landed in the temp dir and is served under /audio/.
	require.True(t, strings.HasPrefix(resp.AudioPath, "/audio/"))
	_, err := os.Stat(filepath.Join(cfg.Server.TempDir, strings.TrimPrefix(resp.AudioPath, "/audio/")))
	assert.NoError(t, err)
}

func TestQueryUnknownCollection(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	payload, _ := json.Marshal(queryRequest{CollectionName: "missing", Query: "anything"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}

func TestQueryValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"collection_name":"x"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`not json`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummarizeFromStoredChunks(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()
	up := uploadDocument(t, h, testDoc)

	payload, _ := json.Marshal(summaryRequest{CollectionName: up.CollectionName, UseFullText: false, TopK: 2})
	req := httptest.NewRequest(http.MethodPost, "/summarize", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Summary)
	assert.True(t, strings.HasPrefix(resp.AudioPath, "/audio/"))
}

func TestSummarizeFullTextReadsOriginal(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()
	up := uploadDocument(t, h, testDoc)

	payload, _ := json.Marshal(summaryRequest{CollectionName: up.CollectionName, UseFullText: true})
	req := httptest.NewRequest(http.MethodPost, "/summarize", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestTranscribeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	body, contentType := multipartBody(t, "file", "clip.wav", "RIFFfakeaudio")
	req := httptest.NewRequest(http.MethodPost, "/transcribe", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp transcriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "transcript 1", resp.Text)
}

func TestTranscribeMissingFile(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	req := httptest.NewRequest(http.MethodPost, "/transcribe", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteCollectionRemovesEverything(t *testing.T) {
	srv, cfg := newTestServer(t)
	h := srv.Routes()
	up := uploadDocument(t, h, testDoc)

	req := httptest.NewRequest(http.MethodDelete, "/collections/"+up.CollectionName, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := os.ReadDir(cfg.Server.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Deleting again is a 404.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/collections/"+up.CollectionName, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCollections(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()
	up := uploadDocument(t, h, testDoc)

	req := httptest.NewRequest(http.MethodGet, "/collections", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), up.CollectionName)
}

func TestQuerySynthesisFailureIsUpstream(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.synthesizer = &fakeSynthesizer{fail: true}
	h := srv.Routes()
	up := uploadDocument(t, h, testDoc)

	payload, _ := json.Marshal(queryRequest{CollectionName: up.CollectionName, Query: "grain warehouse"})
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream_failure")
}
