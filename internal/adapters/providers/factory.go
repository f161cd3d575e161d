package providers

import (
	"fmt"
	"strings"

	"github.com/adityak74/weatherweave/internal/adapters/imagegen"
	"github.com/adityak74/weatherweave/internal/config"
	"github.com/adityak74/weatherweave/internal/core/domain"
)

// BuildRenderers assembles the render strategies in priority order: the
// local worker, the SD web UI fallback, then the remote images API when
// settings enable it. It is called again whenever settings change.
func BuildRenderers(opts *config.Options, cfg *domain.AppConfig) ([]domain.Renderer, error) {
	if cfg == nil {
		cfg = domain.DefaultConfig()
	}

	worker, err := imagegen.NewWorkerRenderer(opts.WorkerCommand, opts.WorkerDir, cfg.GenerationTimeout.Duration())
	if err != nil {
		return nil, fmt.Errorf("failed to build worker renderer: %w", err)
	}

	renderers := []domain.Renderer{
		worker,
		imagegen.NewSDWebUIRenderer(opts.FallbackURL, nil),
	}

	remote, err := buildRemoteRenderer(cfg.RemoteImage)
	if err != nil {
		return nil, err
	}
	if remote != nil {
		renderers = append(renderers, remote)
	}
	return renderers, nil
}

func buildRemoteRenderer(rc domain.RemoteImageConfig) (domain.Renderer, error) {
	mode := strings.ToLower(strings.TrimSpace(rc.Mode))
	switch mode {
	case "", "off":
		return nil, nil
	case "remote":
		if strings.TrimSpace(rc.RemoteURL) == "" {
			return nil, fmt.Errorf("image remote_url is required when mode=remote")
		}
		return imagegen.NewOpenAIImageRenderer(
			strings.TrimSpace(rc.RemoteURL),
			strings.TrimSpace(rc.APIKey),
			strings.TrimSpace(rc.DefaultModel),
		), nil
	default:
		return nil, fmt.Errorf("unsupported image provider mode: %s", rc.Mode)
	}
}
