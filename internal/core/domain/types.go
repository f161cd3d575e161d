package domain

import "context"

// Renderer is one interchangeable strategy for turning a prompt into an
// image file at dest. It returns the path actually written.
type Renderer interface {
	Name() string
	Render(ctx context.Context, prompt, dest string) (string, error)
}

// WeatherSource fetches the current conditions for a location.
type WeatherSource interface {
	Current(ctx context.Context, at Coordinates) (WeatherSnapshot, error)
}

// DesktopApplier paints an image as the background of a display.
type DesktopApplier interface {
	Displays(ctx context.Context) ([]DisplayID, error)
	Apply(ctx context.Context, imagePath string, display DisplayID) error
}
