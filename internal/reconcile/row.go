package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/matching"
	"ScholarshipScanner/internal/ports"
)

// RowReconciler applies the same decisions as Engine but reads and writes the
// store once per draft. Transitions already written stay written on failure.
type RowReconciler struct {
	store      BatchStore
	thresholds matching.Thresholds
	filter     *matching.TermFilter
	logger     *slog.Logger
}

// NewRowReconciler mirrors NewEngine.
func NewRowReconciler(store BatchStore, th matching.Thresholds, filter *matching.TermFilter, logger *slog.Logger) *RowReconciler {
	if filter == nil {
		filter = matching.DefaultTermFilter()
	}
	return &RowReconciler{store: store, thresholds: th.WithDefaults(), filter: filter, logger: logger}
}

// Reconcile processes drafts one at a time. The returned report covers what was
// written before an error, if any.
func (r *RowReconciler) Reconcile(ctx context.Context, drafts []domain.ApprovalDraft) (domain.ReconcileReport, error) {
	report := domain.NewReconcileReport(len(drafts))
	if len(drafts) == 0 {
		return report, nil
	}

	advisors, err := r.store.ListAdvisors(ctx)
	if err != nil {
		return report, fmt.Errorf("list advisors: %w: %w", domain.ErrStore, err)
	}

	d := newDecider(advisors, r.thresholds, r.filter, r.logger)
	c := &storeCatalog{store: r.store, matcher: d.projects}

	for _, draft := range drafts {
		if ctx.Err() != nil {
			break
		}

		dec, reason, err := d.decide(ctx, c, draft)
		if err != nil {
			return report, fmt.Errorf("decide draft: %w: %w", domain.ErrStore, err)
		}
		if reason != "" {
			report.Skip(reason)
			continue
		}

		report.Planned++
		n, err := r.store.TransitionSlots(ctx, []domain.SlotTransition{dec.transition})
		if err != nil {
			return report, fmt.Errorf("transition slot %s: %w: %w", dec.transition.SlotID, domain.ErrStore, err)
		}
		if n == 0 {
			report.Skip(domain.SkipConflict)
			continue
		}
		report.Applied += n
		report.Transitions = append(report.Transitions, dec.transition)
	}

	if r.logger != nil {
		r.logger.Info("rows reconciled", "drafts", report.Drafts, "applied", report.Applied, "skipped", report.SkippedTotal())
	}
	return report, nil
}

// storeCatalog answers every lookup with a store query.
type storeCatalog struct {
	store   ports.CatalogReader
	matcher *matching.ProjectMatcher
}

func (c *storeCatalog) projects(ctx context.Context, advisors []string) ([]matching.KeyedProject, error) {
	projects, err := c.store.ListProjects(ctx, ports.ProjectFilter{Advisors: advisors})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return c.matcher.Keyed(projects), nil
}

func (c *storeCatalog) filled(ctx context.Context, projectID string) ([]string, error) {
	rows, err := c.store.ListFilledCandidates(ctx, ports.CandidateFilter{ProjectIDs: []string{projectID}})
	if err != nil {
		return nil, fmt.Errorf("list filled candidates: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Candidate)
	}
	return names, nil
}

func (c *storeCatalog) slot(ctx context.Context, projectID, profile string) (domain.Slot, bool, error) {
	slots, err := c.store.ListAvailableSlots(ctx, ports.SlotFilter{ProjectIDs: []string{projectID}, Profile: profile, Limit: 1})
	if err != nil {
		return domain.Slot{}, false, fmt.Errorf("list available slots: %w", err)
	}
	if len(slots) == 0 {
		return domain.Slot{}, false, nil
	}
	return slots[0], true, nil
}
