package domain

import "time"

// Coordinates locates the weather observation.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// WeatherCategory is the coarse condition used to pick a prompt.
type WeatherCategory string

const (
	WeatherClear        WeatherCategory = "clear"
	WeatherCloudy       WeatherCategory = "cloudy"
	WeatherRainy        WeatherCategory = "rainy"
	WeatherSnowy        WeatherCategory = "snowy"
	WeatherThunderstorm WeatherCategory = "thunderstorm"
	WeatherFoggy        WeatherCategory = "foggy"
)

// WeatherSnapshot is an immutable point-in-time reading.
// Temperature is kept in the units delivered by the endpoint (Fahrenheit).
type WeatherSnapshot struct {
	Temperature   float64   `json:"temperature"`
	Precipitation float64   `json:"precipitation"`
	CloudCover    int       `json:"cloud_cover"`
	WeatherCode   int       `json:"weather_code"`
	CapturedAt    time.Time `json:"captured_at"`
}

// Category derives the coarse condition from the weather code.
func (s WeatherSnapshot) Category() WeatherCategory {
	return Classify(s.WeatherCode, s.CloudCover)
}

// Classify maps a WMO weather code to a category. Codes outside the table
// fall back to cloud cover.
func Classify(code, cloudCover int) WeatherCategory {
	switch code {
	case 0:
		return WeatherClear
	case 1, 2, 3:
		return WeatherCloudy
	case 45, 48:
		return WeatherFoggy
	case 51, 53, 55, 56, 57, 61, 63, 65, 66, 67, 80, 81, 82:
		return WeatherRainy
	case 71, 73, 75, 77, 85, 86:
		return WeatherSnowy
	case 95, 96, 99:
		return WeatherThunderstorm
	}
	if cloudCover > 50 {
		return WeatherCloudy
	}
	return WeatherClear
}
