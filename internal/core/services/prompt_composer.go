package services

import (
	"strings"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// QualitySuffix closes every prompt.
const QualitySuffix = "ultra-detailed, 8K, high quality wallpaper"

// ComposePrompt builds the generation prompt for a snapshot, theme and time
// of day. It is deterministic and never returns an empty string.
func ComposePrompt(snapshot domain.WeatherSnapshot, theme domain.Theme, tod domain.TimeOfDay) string {
	parts := []string{BaseDescription(snapshot.Category(), tod)}
	if m := theme.Modifier(); m != "" {
		parts = append(parts, m)
	}
	parts = append(parts, QualitySuffix)
	return strings.Join(parts, ", ")
}

// BaseDescription selects the scene for a category and time of day.
func BaseDescription(category domain.WeatherCategory, tod domain.TimeOfDay) string {
	switch category {
	case domain.WeatherClear:
		switch tod {
		case domain.TimeSunrise:
			return "Golden sunrise landscape, warm orange and pink sky, dramatic clouds, peaceful atmosphere"
		case domain.TimeDay:
			return "Bright sunny landscape, clear blue sky, vibrant colors, beautiful scenery"
		case domain.TimeSunset:
			return "Golden hour sunset, warm sunlight, dramatic clouds, rich colors"
		default:
			return "Clear starry night sky, milky way, celestial beauty, peaceful darkness"
		}

	case domain.WeatherCloudy:
		switch tod {
		case domain.TimeDay:
			return "Overcast sky, soft diffused light, muted colors, calm atmosphere"
		case domain.TimeNight:
			return "Cloudy night sky, moody atmosphere, soft moonlight breaking through clouds"
		default:
			return "Minimalist foggy landscape, soft light, muted palette, serene"
		}

	case domain.WeatherRainy:
		switch tod {
		case domain.TimeDay:
			return "Rain-soaked landscape, wet reflections, gray skies, atmospheric mood"
		case domain.TimeNight:
			return "Rainy night cityscape, neon reflections on wet streets, moody atmosphere"
		default:
			return "Rainy scene, water droplets, atmospheric precipitation, moody lighting"
		}

	case domain.WeatherSnowy:
		switch tod {
		case domain.TimeDay:
			return "Winter wonderland, snow-covered landscape, crisp white snow, bright daylight"
		case domain.TimeNight:
			return "Snowy night scene, moonlit snow, peaceful winter atmosphere, soft blue tones"
		default:
			return "Winter landscape, snow-covered trees and ground, serene cold atmosphere"
		}

	case domain.WeatherThunderstorm:
		switch tod {
		case domain.TimeDay:
			return "Dramatic storm clouds, lightning in distance, turbulent atmosphere, powerful weather"
		case domain.TimeNight:
			return "Lightning storm at night, dramatic electrical discharge, dark stormy sky"
		default:
			return "Thunderstorm scene, dramatic clouds, lightning, powerful atmospheric conditions"
		}

	case domain.WeatherFoggy:
		return "Misty fog rolling over landscape, mysterious atmosphere, soft diffused light, minimal visibility"
	}

	// Category() is total, so this is only reachable with a hand-built value.
	return "Serene landscape, soft natural light, balanced composition"
}
