package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"voice-rag/internal/helper"
	"voice-rag/internal/parser"
)

type uploadResponse struct {
	Status         string `json:"status"`
	CollectionName string `json:"collection_name"`
	NumChunks      int    `json:"num_chunks"`
	Summary        string `json:"summary"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errE(KindValidation, "missing file field", err))
		return
	}
	defer file.Close()

	if !parser.Supported(header.Filename) {
		writeError(w, errE(KindValidation,
			fmt.Sprintf("unsupported file format, accepted: %s", strings.Join(parser.SupportedExtensions, ", ")), nil))
		return
	}

	collection := fmt.Sprintf("doc_%d_%s", time.Now().Unix(), helper.ShortID())
	ext := strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(s.cfg.Server.UploadDir, collection+ext)

	dst, err := os.Create(path)
	if err != nil {
		writeError(w, errE(KindStorage, "failed to save upload", err))
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		writeError(w, errE(KindStorage, "failed to save upload", err))
		return
	}
	dst.Close()

	info, fullText, err := s.ingest.Ingest(r.Context(), path, collection)
	if err != nil {
		// Roll back the stored file so a failed ingestion leaves nothing.
		os.Remove(path)
		writeError(w, err)
		return
	}

	summary, err := s.summarizer.Summarize(r.Context(), fullText)
	if err != nil {
		os.Remove(path)
		if delErr := s.store.DeleteCollection(r.Context(), collection); delErr != nil {
			log.Warn().Err(delErr).Str("collection", collection).Msg("rollback of collection failed")
		}
		writeError(w, errE(KindUpstream, "summary generation failed", err))
		return
	}

	respondJSON(w, http.StatusOK, uploadResponse{
		Status:         "success",
		CollectionName: collection,
		NumChunks:      info.Chunks,
		Summary:        summary,
	})
}

type queryRequest struct {
	CollectionName string `json:"collection_name"`
	Query          string `json:"query"`
	TopK           int    `json:"top_k"`
}

type queryResponse struct {
	Query           string    `json:"query"`
	Answer          string    `json:"answer"`
	RetrievedChunks []string  `json:"retrieved_chunks"`
	ChunkIDs        []string  `json:"chunk_ids"`
	Distances       []float32 `json:"distances"`
	AudioPath       string    `json:"audio_path"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errE(KindValidation, "invalid request body", err))
		return
	}
	if strings.TrimSpace(req.CollectionName) == "" || strings.TrimSpace(req.Query) == "" {
		writeError(w, errE(KindValidation, "collection_name and query are required", nil))
		return
	}
	if req.TopK == 0 {
		req.TopK = s.cfg.RAG.TopK
	}
	if req.TopK < 0 {
		writeError(w, errE(KindValidation, "top_k must be positive", nil))
		return
	}

	result, err := s.pipeline.Answer(r.Context(), req.Query, req.CollectionName, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}

	audioPath, err := s.synthesizeToFile(r.Context(), result.Answer, "response")
	if err != nil {
		writeError(w, err)
		return
	}

	resp := queryResponse{
		Query:     result.Query,
		Answer:    result.Answer,
		AudioPath: audioPath,
	}
	for _, c := range result.Chunks {
		resp.RetrievedChunks = append(resp.RetrievedChunks, c.Content)
		resp.ChunkIDs = append(resp.ChunkIDs, c.ID)
		resp.Distances = append(resp.Distances, c.Distance)
	}
	respondJSON(w, http.StatusOK, resp)
}

type summaryRequest struct {
	CollectionName string `json:"collection_name"`
	UseFullText    bool   `json:"use_full_text"`
	TopK           int    `json:"top_k"`
}

type summaryResponse struct {
	Summary   string `json:"summary"`
	AudioPath string `json:"audio_path"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errE(KindValidation, "invalid request body", err))
		return
	}
	if strings.TrimSpace(req.CollectionName) == "" {
		writeError(w, errE(KindValidation, "collection_name is required", nil))
		return
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	info, err := s.store.Collection(r.Context(), req.CollectionName)
	if err != nil {
		writeError(w, err)
		return
	}

	var summary string
	if req.UseFullText {
		fullText, err := s.ingest.FullText(info.SourceFile)
		if err != nil {
			writeError(w, errE(KindStorage, "failed to read original document", err))
			return
		}
		summary, err = s.summarizer.Summarize(r.Context(), fullText)
		if err != nil {
			writeError(w, errE(KindUpstream, "summary generation failed", err))
			return
		}
	} else {
		docs, err := s.store.Documents(r.Context(), req.CollectionName, req.TopK)
		if err != nil {
			writeError(w, err)
			return
		}
		chunks := make([]string, len(docs))
		for i, d := range docs {
			chunks[i] = d.Content
		}
		summary, err = s.summarizer.SummarizeChunks(r.Context(), chunks)
		if err != nil {
			writeError(w, errE(KindUpstream, "summary generation failed", err))
			return
		}
	}

	audioPath, err := s.synthesizeToFile(r.Context(), summary, "summary")
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summaryResponse{Summary: summary, AudioPath: audioPath})
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, errE(KindValidation, "missing file field", err))
		return
	}
	defer file.Close()

	// The audio never touches disk; it goes to the model in memory, so
	// there is no request-scoped temp file to clean up.
	wav, err := io.ReadAll(file)
	if err != nil {
		writeError(w, errE(KindValidation, "failed to read audio", err))
		return
	}
	if len(wav) == 0 {
		writeError(w, errE(KindValidation, "empty audio payload", nil))
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), wav)
	if err != nil {
		writeError(w, errE(KindUpstream, "transcription failed", err))
		return
	}
	respondJSON(w, http.StatusOK, transcriptionResponse{Text: text})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	infos, err := s.store.Collections(r.Context())
	if err != nil {
		writeError(w, errE(KindStorage, "failed to list collections", err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"collections": infos})
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, err := s.store.Collection(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.DeleteCollection(r.Context(), name); err != nil {
		writeError(w, errE(KindStorage, "failed to delete collection", err))
		return
	}
	// The uploaded original goes with the collection.
	if info.SourceFile != "" {
		if err := os.Remove(info.SourceFile); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", info.SourceFile).Msg("failed to remove uploaded document")
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "collection_name": name})
}
