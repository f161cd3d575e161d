package kernel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

type wallpaperList struct {
	Current   domain.ArtifactID `json:"current,omitempty"`
	Artifacts []domain.Artifact `json:"artifacts"`
}

func (s *Server) handleListWallpapers(w http.ResponseWriter, r *http.Request) {
	arts, current := s.store.Snapshot()
	writeJSON(w, http.StatusOK, wallpaperList{Current: current, Artifacts: arts})
}

func (s *Server) handleCurrentWallpaper(w http.ResponseWriter, r *http.Request) {
	a, ok := s.store.Current()
	if !ok {
		s.writeError(w, fmt.Errorf("%w: no current wallpaper", domain.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type generateResponse struct {
	RunID    domain.RunID     `json:"run_id"`
	Artifact *domain.Artifact `json:"artifact,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// POST /v1/wallpapers runs the pipeline synchronously.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	art, runID, err := s.pipeline.Run(r.Context(), domain.TriggerAPI)
	if err != nil {
		resp := generateResponse{RunID: runID, Error: err.Error()}
		// Apply failures still leave a persisted wallpaper behind.
		if art.ID != "" {
			resp.Artifact = &art
		}
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("generate failed", "run_id", runID, "error", err)
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusCreated, generateResponse{RunID: runID, Artifact: &art})
}

// POST /v1/wallpapers/{id}/apply
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	id := domain.ArtifactID(r.PathValue("id"))
	if err := s.store.SetCurrent(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	a, err := s.store.Get(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DELETE /v1/wallpapers/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), domain.ArtifactID(r.PathValue("id"))); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pruneRequest struct {
	Keep *int `json:"keep"`
}

type pruneResponse struct {
	Removed []domain.Artifact `json:"removed"`
	Kept    int               `json:"kept"`
}

// POST /v1/wallpapers/prune {"keep": 5}; keep defaults to the retention cap.
func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	keep := s.settings.GetConfig().RetentionCap
	if req.Keep != nil {
		keep = *req.Keep
	}
	if keep < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "keep must be at least 1"})
		return
	}

	removed, err := s.store.EnforceRetention(r.Context(), keep)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if removed == nil {
		removed = []domain.Artifact{}
	}
	writeJSON(w, http.StatusOK, pruneResponse{Removed: removed, Kept: len(s.store.History())})
}

// GET /v1/wallpapers/{id}/image serves the PNG from managed storage.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.Get(domain.ArtifactID(r.PathValue("id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, a.ImagePath)
}
