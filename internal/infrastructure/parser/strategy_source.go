package parser

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"ScholarshipScanner/internal/config"
	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/ports"
	"ScholarshipScanner/internal/scanner"
)

// StrategySource implements AnnouncementSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.AnnouncementSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchListings scans every configured site and returns the listings oldest first,
// one per link. A failing site is logged and skipped; the call fails only when every site fails.
func (s *StrategySource) FetchListings(ctx context.Context, since *time.Time) ([]domain.Listing, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch listings", "sites", len(s.sites), "since", since)

	var (
		aggregated []domain.Listing
		failures   []error
		seen       = make(map[string]struct{})
	)
	for _, site := range s.sites {
		results, err := s.scanSite(ctx, site, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures = append(failures, err)
			if s.logger != nil {
				s.logger.Warn("site scan failed", "site", site.Name, "error", err)
			}
			continue
		}

		s.debug("site produced listings", "site", site.Name, "count", len(results))
		for _, l := range results {
			if _, dup := seen[l.Link]; dup {
				continue
			}
			seen[l.Link] = struct{}{}
			aggregated = append(aggregated, l)
		}
	}

	if len(failures) > 0 && len(failures) == len(s.sites) {
		return nil, errors.Join(failures...)
	}

	slices.SortStableFunc(aggregated, func(a, b domain.Listing) int {
		return cmp.Compare(publishedUnix(a), publishedUnix(b))
	})
	return aggregated, nil
}

func (s *StrategySource) scanSite(ctx context.Context, site config.SiteConfig, since *time.Time) ([]domain.Listing, error) {
	strategy, err := s.registry.Resolve(site.Scanner)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Name, err)
	}

	results, err := strategy.Scan(ctx, scanner.Request{
		Since:    since,
		SiteName: site.Name,
		BaseURL:  site.URL,
		Pages:    site.Pages,
		Options:  site.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("scan site %s: %w", site.Name, err)
	}
	return results, nil
}

// publishedUnix orders undated listings first.
func publishedUnix(l domain.Listing) int64 {
	if l.PublishedAt == nil {
		return 0
	}
	return l.PublishedAt.Unix()
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
