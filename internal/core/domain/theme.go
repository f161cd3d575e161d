package domain

import (
	"fmt"
	"strings"
)

// Theme is the visual style applied on top of the weather description.
type Theme string

const (
	ThemeCyberpunk Theme = "cyberpunk"
	ThemeNature    Theme = "nature"
	ThemeAbstract  Theme = "abstract"
	ThemeMinimal   Theme = "minimal"
)

// DefaultTheme is used when the user has not picked one.
const DefaultTheme = ThemeNature

// AllThemes lists the closed set in display order.
var AllThemes = []Theme{ThemeCyberpunk, ThemeNature, ThemeAbstract, ThemeMinimal}

// ParseTheme accepts a theme name case-insensitively.
func ParseTheme(s string) (Theme, error) {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTheme, s)
	}
	return t, nil
}

func (t Theme) Valid() bool {
	switch t {
	case ThemeCyberpunk, ThemeNature, ThemeAbstract, ThemeMinimal:
		return true
	}
	return false
}

// Modifier is the style descriptor appended to every prompt.
func (t Theme) Modifier() string {
	switch t {
	case ThemeCyberpunk:
		return "cyberpunk aesthetic, neon lights, futuristic cityscape, dramatic lighting, sci-fi atmosphere"
	case ThemeNature:
		return "natural landscape, organic forms, photorealistic, vibrant nature, scenic beauty"
	case ThemeAbstract:
		return "abstract art, geometric shapes, bold colors, modern design, artistic composition"
	case ThemeMinimal:
		return "minimalist design, clean composition, simple forms, muted colors, serene atmosphere"
	}
	return ""
}

func (t Theme) DisplayName() string {
	switch t {
	case ThemeCyberpunk:
		return "Cyberpunk"
	case ThemeNature:
		return "Nature"
	case ThemeAbstract:
		return "Abstract"
	case ThemeMinimal:
		return "Minimal"
	}
	return string(t)
}

func (t Theme) Description() string {
	switch t {
	case ThemeCyberpunk:
		return "Neon-lit futuristic cityscapes"
	case ThemeNature:
		return "Photorealistic natural landscapes"
	case ThemeAbstract:
		return "Bold geometric compositions"
	case ThemeMinimal:
		return "Clean, calm and understated"
	}
	return ""
}
