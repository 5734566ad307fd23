// Package catalog collects look and dashboard definitions from a source
// instance and persists them as one JSON document per object.
package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lherron/lkmig/internal/looker"
	"github.com/lherron/lkmig/internal/remap"
)

// Source is the read side of the platform the collector needs.
type Source interface {
	ListLooks(ctx context.Context) ([]looker.Look, error)
	GetLook(ctx context.Context, id looker.ID) (*looker.Look, error)
	ListDashboards(ctx context.Context) ([]looker.Dashboard, error)
	GetDashboard(ctx context.Context, id looker.ID) (*looker.Dashboard, error)
}

// Collector enumerates content on a source instance.
type Collector struct {
	src Source
	log zerolog.Logger
}

// NewCollector returns a collector reading from src.
func NewCollector(src Source, log zerolog.Logger) *Collector {
	return &Collector{src: src, log: log.With().Str("component", "collector").Logger()}
}

// CollectLooks returns the full detail of every live look whose space is
// selected by spaces. A look whose detail cannot be fetched is logged and
// left out.
func (c *Collector) CollectLooks(ctx context.Context, spaces remap.Table) ([]looker.Look, error) {
	summaries, err := c.src.ListLooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list looks: %w", err)
	}

	var looks []looker.Look
	for _, s := range summaries {
		if s.Deleted || !remap.Selects(s.SpaceName(), spaces) {
			continue
		}
		full, err := c.src.GetLook(ctx, s.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Error().Err(err).Str("look", s.Title).Str("id", s.ID.String()).Msg("fetch look failed")
			continue
		}
		c.log.Debug().Str("look", full.Title).Str("space", full.SpaceName()).Msg("collected look")
		looks = append(looks, *full)
	}
	return looks, nil
}

// CollectDashboards returns the full detail of every live dashboard whose
// space is selected by spaces. Dashboards without a space are skipped.
func (c *Collector) CollectDashboards(ctx context.Context, spaces remap.Table) ([]looker.Dashboard, error) {
	summaries, err := c.src.ListDashboards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dashboards: %w", err)
	}

	var dashboards []looker.Dashboard
	for _, s := range summaries {
		if s.Deleted {
			continue
		}
		if s.Space == nil {
			c.log.Warn().Str("dashboard", s.Title).Str("id", s.ID.String()).Msg("dashboard has no space, skipping")
			continue
		}
		if !remap.Selects(s.SpaceName(), spaces) {
			continue
		}
		full, err := c.src.GetDashboard(ctx, s.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Error().Err(err).Str("dashboard", s.Title).Str("id", s.ID.String()).Msg("fetch dashboard failed")
			continue
		}
		c.log.Debug().
			Str("dashboard", full.Title).
			Str("space", full.SpaceName()).
			Int("elements", len(full.Elements)).
			Msg("collected dashboard")
		dashboards = append(dashboards, *full)
	}
	return dashboards, nil
}

// AllLooks returns every live look without space filtering or detail fetch.
// It backs look reference resolution during dashboard import.
func (c *Collector) AllLooks(ctx context.Context) ([]looker.Look, error) {
	summaries, err := c.src.ListLooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list looks: %w", err)
	}
	looks := make([]looker.Look, 0, len(summaries))
	for _, s := range summaries {
		if s.Deleted {
			continue
		}
		looks = append(looks, s)
	}
	return looks, nil
}
