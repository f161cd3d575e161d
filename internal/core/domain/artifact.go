package domain

import "time"

type ArtifactID string

// Artifact is a generated wallpaper owned by the artifact store.
type Artifact struct {
	ID        ArtifactID      `json:"id"`
	ImagePath string          `json:"image_path"`
	Weather   WeatherSnapshot `json:"weather"`
	Theme     Theme           `json:"theme"`
	CreatedAt time.Time       `json:"created_at"`
}

// DisplayName is a short human label, e.g. "Nature · clear · 14:05".
func (a Artifact) DisplayName() string {
	return a.Theme.DisplayName() + " · " + string(a.Weather.Category()) + " · " + a.CreatedAt.Format("Jan 2 15:04")
}

// DisplayID identifies one attached screen for the desktop applier.
type DisplayID string
