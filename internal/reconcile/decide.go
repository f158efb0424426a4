// Package reconcile turns extracted drafts into changes of the canonical store.
package reconcile

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/matching"
)

// catalog is the view of canonical records a decision runs against. The batch
// engine serves it from memory, the row reconciler from the store.
type catalog interface {
	projects(ctx context.Context, advisors []string) ([]matching.KeyedProject, error)
	filled(ctx context.Context, projectID string) ([]string, error)
	slot(ctx context.Context, projectID, profile string) (domain.Slot, bool, error)
}

type decision struct {
	transition domain.SlotTransition
	projectID  string
	strategy   matching.Strategy
}

type decider struct {
	advisors *matching.AdvisorIndex
	projects *matching.ProjectMatcher
	guard    *matching.CandidateGuard
	fallback matching.AmbiguityFallback
	logger   *slog.Logger
}

func newDecider(advisors []string, th matching.Thresholds, filter *matching.TermFilter, logger *slog.Logger) *decider {
	return &decider{
		advisors: matching.NewAdvisorIndex(advisors, th.AdvisorLimit, th.AdvisorCutoff),
		projects: matching.NewProjectMatcher(filter, th.JaccardCutoff, th.ResultProjectCutoff),
		guard:    matching.NewCandidateGuard(th.CandidateCutoff),
		logger:   logger,
	}
}

// decide runs advisor, project, fallback, duplicate and slot checks for one draft.
// A non-empty reason means the draft is skipped; errors come only from the catalog.
func (d *decider) decide(ctx context.Context, c catalog, draft domain.ApprovalDraft) (decision, domain.SkipReason, error) {
	profile := matching.NormalizeProfile(string(draft.Profile))
	if matching.Key(draft.Advisor) == "" || strings.TrimSpace(draft.ProjectTitle) == "" ||
		matching.Key(draft.Candidate) == "" || profile == "" {
		d.skip(domain.SkipMalformed, draft)
		return decision{}, domain.SkipMalformed, nil
	}

	advisors := d.advisors.Resolve(draft.Advisor)
	if len(advisors) == 0 {
		d.skip(domain.SkipAdvisorNotFound, draft)
		return decision{}, domain.SkipAdvisorNotFound, nil
	}

	candidates, err := c.projects(ctx, advisors)
	if err != nil {
		return decision{}, "", err
	}
	candidates = orderCandidates(candidates)

	var (
		project  domain.Project
		strategy matching.Strategy
	)
	if match, ok := d.projects.MatchKeyed(draft.ProjectTitle, candidates); ok {
		project, strategy = match.Project, match.Strategy
	} else {
		raw := make([]domain.Project, 0, len(candidates))
		for _, kp := range candidates {
			raw = append(raw, kp.Project)
		}
		only, count, ok := d.fallback.Resolve(raw)
		if !ok {
			reason := domain.SkipAmbiguous
			if count == 0 {
				reason = domain.SkipProjectNotFound
			}
			d.skip(reason, draft, "candidates", count)
			return decision{}, reason, nil
		}
		project, strategy = only, matching.StrategyFallback
	}

	existing, err := c.filled(ctx, project.ID)
	if err != nil {
		return decision{}, "", err
	}
	if d.guard.IsDuplicate(draft.Candidate, existing) {
		d.skip(domain.SkipDuplicate, draft, "project_id", project.ID)
		return decision{}, domain.SkipDuplicate, nil
	}

	slot, ok, err := c.slot(ctx, project.ID, profile)
	if err != nil {
		return decision{}, "", err
	}
	if !ok {
		d.skip(domain.SkipSlotUnavailable, draft, "project_id", project.ID, "profile", profile)
		return decision{}, domain.SkipSlotUnavailable, nil
	}

	return decision{
		transition: domain.SlotTransition{SlotID: slot.ID, Candidate: matching.DisplayName(draft.Candidate)},
		projectID:  project.ID,
		strategy:   strategy,
	}, "", nil
}

func (d *decider) skip(reason domain.SkipReason, draft domain.ApprovalDraft, args ...any) {
	if d.logger == nil {
		return
	}
	attrs := append([]any{
		"reason", reason,
		"advisor", draft.Advisor,
		"project", draft.ProjectTitle,
		"candidate", draft.Candidate,
	}, args...)
	d.logger.Debug("draft skipped", attrs...)
}

// orderCandidates sorts by name then id so ties on the filtered key resolve the
// same way whichever catalog produced the candidates.
func orderCandidates(candidates []matching.KeyedProject) []matching.KeyedProject {
	out := slices.Clone(candidates)
	slices.SortStableFunc(out, func(a, b matching.KeyedProject) int {
		return cmp.Or(
			strings.Compare(a.Project.Name, b.Project.Name),
			strings.Compare(a.Project.ID, b.Project.ID),
		)
	})
	return out
}
