package parser

import (
	"fmt"
	"log/slog"

	"feedingest/internal/config"
	"feedingest/internal/layout"
)

// NewRegistry registers the built-in layouts plus the config-defined ones.
// A custom layout with a built-in name replaces the built-in.
func NewRegistry(cfg config.LayoutsConfig) (*layout.Registry, error) {
	registry := layout.NewRegistry()
	registry.Register(layout.NewArticleLayout())
	registry.Register(layout.NewScienceLayout())
	registry.Register(layout.ReadabilityLayout{})

	for _, custom := range cfg.Custom {
		if custom.Name == "" || custom.Container == "" {
			return nil, fmt.Errorf("custom layout %q needs a name and a container selector", custom.Name)
		}
		scope := layout.LeadScope(custom.LeadScope)
		switch scope {
		case "", layout.LeadInContainer, layout.LeadInDocument:
		default:
			return nil, fmt.Errorf("custom layout %s: unknown lead scope %q", custom.Name, custom.LeadScope)
		}
		registry.Register(layout.NewSelectorLayout(custom.Name, custom.Container, custom.Lead, scope))
	}

	return registry, nil
}

// NewDispatcher resolves the configured layout order. The readability
// fallback is appended last when enabled and not already listed.
func NewDispatcher(cfg config.LayoutsConfig, log *slog.Logger) (*layout.Dispatcher, error) {
	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}

	order := append([]string(nil), cfg.Order...)
	if len(order) == 0 {
		order = []string{"article", "science"}
	}
	if cfg.Readability && !contains(order, "readability") {
		order = append(order, "readability")
	}

	layouts, err := registry.Resolve(order...)
	if err != nil {
		return nil, fmt.Errorf("resolve layouts: %w", err)
	}

	if log != nil {
		log.Debug("layouts resolved", "order", order)
	}
	return layout.NewDispatcher(layouts, log), nil
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
