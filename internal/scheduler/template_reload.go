// Package scheduler hosts the background loops of the service.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/scheduler/internal/dispatch"
	"github.com/fieldops/scheduler/internal/logger"
	"github.com/fieldops/scheduler/internal/sources/templates"
)

// TemplateReloader handles periodic reloading of the notification template
// catalog from templates.yaml.
type TemplateReloader struct {
	loader        *templates.Loader
	catalog       *dispatch.Catalog
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewTemplateReloader creates a new template reloader
func NewTemplateReloader(
	templateFile string,
	catalog *dispatch.Catalog,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *TemplateReloader {
	return &TemplateReloader{
		loader:        templates.NewLoader(templateFile),
		catalog:       catalog,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic reload process
func (tr *TemplateReloader) Start(ctx context.Context) error {
	// Load immediately on start
	if err := tr.Reload(); err != nil {
		return fmt.Errorf("initial template load failed: %w", err)
	}

	ticker := time.NewTicker(tr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := tr.Reload(); err != nil {
					tr.logger.Error("failed to reload templates",
						logger.Error(err))
				}
			case <-tr.manualTrigger:
				tr.logger.Info("manual template reload triggered")
				if err := tr.Reload(); err != nil {
					tr.logger.Error("failed to reload templates",
						logger.Error(err))
				}
			case <-tr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (tr *TemplateReloader) Stop() {
	close(tr.stopCh)
}

// Reload loads templates from the file and swaps the catalog contents
func (tr *TemplateReloader) Reload() error {
	config, err := tr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	entries := templates.MapTemplates(config)
	tr.catalog.Replace(entries)

	tr.logger.Info("notification templates reloaded",
		logger.Int("count", len(entries)))
	return nil
}
