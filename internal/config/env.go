package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/shlex"
	"github.com/joho/godotenv"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

const envPrefix = "WEATHERWEAVE_"

const (
	DefaultListenAddr    = "127.0.0.1:8765"
	DefaultWorkerCommand = "python3 generate_image.py"
	DefaultFallbackURL   = "http://127.0.0.1:7860"
	DefaultDisplays      = "main"
)

var validate = validator.New()

// Options are the bootstrap settings read from the environment. They do
// not change while the process runs; user-editable settings live in
// SettingsStore.
type Options struct {
	DataDir       string              `validate:"required"`
	DBPath        string              `validate:"required"`
	ListenAddr    string              `validate:"required,hostname_port"`
	Location      *domain.Coordinates `validate:"omitempty"`
	WeatherURL    string              `validate:"omitempty,url"`
	WorkerCommand []string            `validate:"min=1,dive,required"`
	WorkerDir     string
	FallbackURL   string             `validate:"required,url"`
	ApplyCommand  string             `validate:"omitempty,contains={path}"`
	Displays      []domain.DisplayID `validate:"min=1,dive,required"`
	SecretKey     string
	LogLevel      string `validate:"oneof=debug info warn error"`
	LogFormat     string `validate:"oneof=json text"`
}

// LoadOptions reads .env files (missing files are ignored), then the
// process environment, applies defaults and validates the result.
func LoadOptions(envFiles ...string) (*Options, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	dataDir := getenvDefault("DATA_DIR", filepath.Join(homeDir(), ".weatherweave"))

	opts := &Options{
		DataDir:      dataDir,
		DBPath:       getenvDefault("DB_PATH", DefaultDBPath(dataDir)),
		ListenAddr:   getenvDefault("LISTEN_ADDR", DefaultListenAddr),
		WeatherURL:   getenv("WEATHER_URL"),
		WorkerDir:    getenv("WORKER_DIR"),
		FallbackURL:  getenvDefault("FALLBACK_URL", DefaultFallbackURL),
		ApplyCommand: getenv("APPLY_COMMAND"),
		SecretKey:    getenv("SECRET_KEY"),
		LogLevel:     strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getenvDefault("LOG_FORMAT", "json")),
	}

	for _, d := range strings.Split(getenvDefault("DISPLAYS", DefaultDisplays), ",") {
		if d = strings.TrimSpace(d); d != "" {
			opts.Displays = append(opts.Displays, domain.DisplayID(d))
		}
	}

	// Split like a shell so quoted paths with spaces stay one argument.
	worker, err := shlex.Split(getenvDefault("WORKER_COMMAND", DefaultWorkerCommand))
	if err != nil {
		return nil, fmt.Errorf("invalid %sWORKER_COMMAND: %w", envPrefix, err)
	}
	opts.WorkerCommand = worker

	loc, err := parseLocation(getenv("LATITUDE"), getenv("LONGITUDE"))
	if err != nil {
		return nil, err
	}
	opts.Location = loc

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Validate checks the options after flags may have overridden them.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// RequireLocation returns the configured coordinates or an error naming
// the variables to set.
func (o *Options) RequireLocation() (domain.Coordinates, error) {
	if o.Location == nil {
		return domain.Coordinates{}, fmt.Errorf("location not configured: set %sLATITUDE and %sLONGITUDE", envPrefix, envPrefix)
	}
	return *o.Location, nil
}

// DefaultDBPath is the database location inside dataDir.
func DefaultDBPath(dataDir string) string {
	return filepath.Join(dataDir, "weatherweave.duckdb")
}

// StorageDir is where artifacts and history.json live.
func (o *Options) StorageDir() string {
	return filepath.Join(o.DataDir, "wallpapers")
}

// WorkDir holds in-flight renders before they are persisted.
func (o *Options) WorkDir() string {
	return filepath.Join(o.DataDir, "tmp")
}

// SetLocation parses and validates coordinates given as strings.
func (o *Options) SetLocation(lat, lon string) error {
	loc, err := parseLocation(lat, lon)
	if err != nil {
		return err
	}
	if loc != nil {
		o.Location = loc
	}
	return nil
}

func parseLocation(lat, lon string) (*domain.Coordinates, error) {
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, fmt.Errorf("latitude and longitude must be set together")
	}

	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", lat, err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", lon, err)
	}

	loc := &domain.Coordinates{Latitude: la, Longitude: lo}
	if err := validate.Struct(loc); err != nil {
		return nil, fmt.Errorf("invalid coordinates: %w", err)
	}
	return loc, nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}
