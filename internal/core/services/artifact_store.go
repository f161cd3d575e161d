package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

const (
	historyFileName = "history.json"
	historyVersion  = 1
)

// historyState is an immutable view of the history. A new value is
// published on every mutation so readers never need the write lock.
type historyState struct {
	artifacts []domain.Artifact // newest first
	current   domain.ArtifactID
}

// historyFile is the on-disk envelope. Older installs wrote a bare array,
// which load still accepts.
type historyFile struct {
	Version   int               `json:"version"`
	Current   domain.ArtifactID `json:"current,omitempty"`
	Artifacts []domain.Artifact `json:"artifacts"`
}

// ArtifactStore owns generated wallpapers on disk and their ordered history.
type ArtifactStore struct {
	logger  *slog.Logger
	dir     string
	applier domain.DesktopApplier
	now     Clock

	mu       sync.Mutex // serializes writers
	state    atomic.Pointer[historyState]
	onChange func(size int)
}

// NewArtifactStore opens (creating if needed) the managed directory and
// loads history.json. Unreadable history degrades to an empty one.
func NewArtifactStore(logger *slog.Logger, dir string, applier domain.DesktopApplier, now Clock) (*ArtifactStore, error) {
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage dir: %w", domain.ErrPersistence, err)
	}

	s := &ArtifactStore{
		logger:  logger,
		dir:     dir,
		applier: applier,
		now:     now,
	}
	s.state.Store(s.load())
	return s, nil
}

// Dir is the managed storage directory.
func (s *ArtifactStore) Dir() string { return s.dir }

// OnChange registers a hook receiving the history length after each mutation.
func (s *ArtifactStore) OnChange(fn func(size int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// History returns the artifacts, newest first.
func (s *ArtifactStore) History() []domain.Artifact {
	st := s.state.Load()
	out := make([]domain.Artifact, len(st.artifacts))
	copy(out, st.artifacts)
	return out
}

// Current returns the artifact designated as the active wallpaper.
func (s *ArtifactStore) Current() (domain.Artifact, bool) {
	st := s.state.Load()
	if st.current == "" {
		return domain.Artifact{}, false
	}
	return st.find(st.current)
}

// Snapshot returns the history and current id from one consistent view.
func (s *ArtifactStore) Snapshot() ([]domain.Artifact, domain.ArtifactID) {
	st := s.state.Load()
	out := make([]domain.Artifact, len(st.artifacts))
	copy(out, st.artifacts)
	return out, st.current
}

// Get looks up an artifact by id.
func (s *ArtifactStore) Get(id domain.ArtifactID) (domain.Artifact, error) {
	a, ok := s.state.Load().find(id)
	if !ok {
		return domain.Artifact{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return a, nil
}

// Persist copies sourceFile into managed storage, records it at the front
// of the history and makes it current.
func (s *ArtifactStore) Persist(ctx context.Context, sourceFile string, weather domain.WeatherSnapshot, theme domain.Theme) (domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now()
	dest, err := s.copyIn(sourceFile, createdAt)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: copy %s: %w", domain.ErrPersistence, sourceFile, err)
	}

	art := domain.Artifact{
		ID:        domain.ArtifactID(uuid.New().String()),
		ImagePath: dest,
		Weather:   weather,
		Theme:     theme,
		CreatedAt: createdAt,
	}

	prev := s.state.Load()
	next := &historyState{
		artifacts: append([]domain.Artifact{art}, prev.artifacts...),
		current:   art.ID,
	}

	if err := s.commit(next); err != nil {
		// Nothing was published, so memory still matches the old file.
		if rmErr := os.Remove(dest); rmErr != nil {
			s.logger.Warn("failed to remove orphaned wallpaper", "path", dest, "error", rmErr)
		}
		return domain.Artifact{}, err
	}

	s.logger.Info("wallpaper persisted", "id", art.ID, "path", dest, "history_size", len(next.artifacts))
	return art, nil
}

// SetCurrent applies the artifact to every display and, only if all of
// them succeed, records it as current.
func (s *ArtifactStore) SetCurrent(ctx context.Context, id domain.ArtifactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Load()
	art, ok := prev.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	if s.applier != nil {
		displays, err := s.applier.Displays(ctx)
		if err != nil {
			return &domain.ApplyError{Display: "*", Err: err}
		}
		for _, d := range displays {
			if err := s.applier.Apply(ctx, art.ImagePath, d); err != nil {
				return &domain.ApplyError{Display: d, Err: err}
			}
		}
	}

	if prev.current == id {
		return nil
	}
	next := &historyState{artifacts: prev.artifacts, current: id}
	if err := s.commit(next); err != nil {
		return err
	}

	s.logger.Info("wallpaper applied", "id", id)
	return nil
}

// Delete removes an artifact and its file. Deleting the current artifact
// clears the pointer in the same published state that drops the entry.
func (s *ArtifactStore) Delete(ctx context.Context, id domain.ArtifactID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Load()
	art, ok := prev.find(id)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}

	next := &historyState{current: prev.current}
	if next.current == id {
		next.current = ""
	}
	for _, a := range prev.artifacts {
		if a.ID != id {
			next.artifacts = append(next.artifacts, a)
		}
	}

	if err := s.commit(next); err != nil {
		return err
	}
	s.removeFile(art)

	s.logger.Info("wallpaper deleted", "id", id, "was_current", prev.current == id)
	return nil
}

// EnforceRetention drops the oldest artifacts until at most limit remain.
// The current artifact is never evicted, so history may stay one over the
// limit when the current artifact is the oldest.
func (s *ArtifactStore) EnforceRetention(ctx context.Context, limit int) ([]domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 0 {
		limit = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.Load()
	excess := len(prev.artifacts) - limit
	if excess <= 0 {
		return nil, nil
	}

	drop := make(map[domain.ArtifactID]bool, excess)
	var removed []domain.Artifact
	for i := len(prev.artifacts) - 1; i >= 0 && len(removed) < excess; i-- {
		a := prev.artifacts[i]
		if a.ID == prev.current {
			continue
		}
		drop[a.ID] = true
		removed = append(removed, a)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	next := &historyState{current: prev.current}
	for _, a := range prev.artifacts {
		if !drop[a.ID] {
			next.artifacts = append(next.artifacts, a)
		}
	}

	if err := s.commit(next); err != nil {
		return nil, err
	}
	for _, a := range removed {
		s.removeFile(a)
	}

	s.logger.Info("retention enforced", "removed", len(removed), "history_size", len(next.artifacts))
	return removed, nil
}

// commit writes next to disk and publishes it. Callers hold s.mu.
func (s *ArtifactStore) commit(next *historyState) error {
	if next.artifacts == nil {
		next.artifacts = []domain.Artifact{}
	}

	data, err := json.MarshalIndent(historyFile{
		Version:   historyVersion,
		Current:   next.current,
		Artifacts: next.artifacts,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode history: %w", domain.ErrPersistence, err)
	}

	if err := atomicWrite(filepath.Join(s.dir, historyFileName), data); err != nil {
		return fmt.Errorf("%w: write history: %w", domain.ErrPersistence, err)
	}

	s.state.Store(next)
	if s.onChange != nil {
		s.onChange(len(next.artifacts))
	}
	return nil
}

func (s *ArtifactStore) load() *historyState {
	empty := &historyState{artifacts: []domain.Artifact{}}
	path := filepath.Join(s.dir, historyFileName)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("history unreadable, starting empty", "path", path, "error", err)
		}
		return empty
	}

	var hf historyFile
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &hf.Artifacts)
	} else {
		err = json.Unmarshal(trimmed, &hf)
	}
	if err != nil {
		s.logger.Warn("history malformed, starting empty", "path", path, "error", err)
		return empty
	}

	st := &historyState{artifacts: make([]domain.Artifact, 0, len(hf.Artifacts))}
	for _, a := range hf.Artifacts {
		if a.ID == "" {
			continue
		}
		if _, err := os.Stat(a.ImagePath); err != nil {
			s.logger.Warn("dropping history entry with missing file", "id", a.ID, "path", a.ImagePath)
			continue
		}
		st.artifacts = append(st.artifacts, a)
	}
	if _, ok := st.find(hf.Current); ok {
		st.current = hf.Current
	}

	s.logger.Info("history loaded", "entries", len(st.artifacts), "current", st.current)
	return st
}

// copyIn copies src to wallpaper_<unix>.png, adding a counter when two
// artifacts land in the same second.
func (s *ArtifactStore) copyIn(src string, at time.Time) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	var out *os.File
	var dest string
	for n := 0; ; n++ {
		name := fmt.Sprintf("wallpaper_%d.png", at.Unix())
		if n > 0 {
			name = fmt.Sprintf("wallpaper_%d_%d.png", at.Unix(), n)
		}
		dest = filepath.Join(s.dir, name)
		out, err = os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

func (s *ArtifactStore) removeFile(a domain.Artifact) {
	if err := os.Remove(a.ImagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove wallpaper file", "id", a.ID, "path", a.ImagePath, "error", err)
	}
}

func (st *historyState) find(id domain.ArtifactID) (domain.Artifact, bool) {
	for _, a := range st.artifacts {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Artifact{}, false
}

// atomicWrite replaces path via a synced temp file in the same directory.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
