package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/matching"
	"ScholarshipScanner/internal/ports"
)

// BatchStore is what the batch engine needs from the canonical store.
type BatchStore interface {
	ports.CatalogReader
	ports.SlotWriter
}

// Engine reconciles a batch of approval drafts with four bulk loads and one bulk write.
type Engine struct {
	store      BatchStore
	thresholds matching.Thresholds
	filter     *matching.TermFilter
	logger     *slog.Logger
}

// NewEngine wires the store; zero thresholds fall back to the defaults and a nil
// filter to matching.DefaultTermFilter.
func NewEngine(store BatchStore, th matching.Thresholds, filter *matching.TermFilter, logger *slog.Logger) *Engine {
	if filter == nil {
		filter = matching.DefaultTermFilter()
	}
	return &Engine{store: store, thresholds: th.WithDefaults(), filter: filter, logger: logger}
}

// Reconcile decides every draft in memory and writes the transitions in one call.
// Cancelling ctx stops deciding further drafts; decided transitions are still written.
// A store failure discards the whole batch: the report is empty and the error wraps domain.ErrStore.
func (e *Engine) Reconcile(ctx context.Context, drafts []domain.ApprovalDraft) (domain.ReconcileReport, error) {
	report := domain.NewReconcileReport(len(drafts))
	if len(drafts) == 0 {
		return report, nil
	}

	snap, err := e.load(ctx)
	if err != nil {
		return domain.NewReconcileReport(len(drafts)), err
	}

	d := newDecider(snap.advisors, e.thresholds, e.filter, e.logger)
	idx := newMemoryCatalog(d.projects, snap)

	var pending []domain.SlotTransition
	for i, draft := range drafts {
		if ctx.Err() != nil {
			e.debug("batch interrupted", "decided", i, "remaining", len(drafts)-i)
			break
		}

		dec, reason, err := d.decide(ctx, idx, draft)
		if err != nil {
			return domain.NewReconcileReport(len(drafts)), fmt.Errorf("decide draft: %w", err)
		}
		if reason != "" {
			report.Skip(reason)
			continue
		}
		idx.fill(dec.projectID, dec.transition.Candidate)
		pending = append(pending, dec.transition)
		e.debug("draft matched", "project_id", dec.projectID, "strategy", dec.strategy, "slot_id", dec.transition.SlotID)
	}

	report.Planned = len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	applied, err := e.store.TransitionSlots(context.WithoutCancel(ctx), pending)
	if err != nil {
		return domain.NewReconcileReport(len(drafts)), fmt.Errorf("transition slots: %w: %w", domain.ErrStore, err)
	}

	report.Applied = applied
	report.Transitions = pending
	if conflicts := len(pending) - applied; conflicts > 0 {
		report.Skipped[domain.SkipConflict] += conflicts
	}

	e.info("batch reconciled", "drafts", report.Drafts, "applied", report.Applied, "skipped", report.SkippedTotal())
	return report, nil
}

type snapshot struct {
	advisors []string
	projects []domain.Project
	slots    []domain.Slot
	filled   []domain.FilledCandidate
}

func (e *Engine) load(ctx context.Context) (snapshot, error) {
	advisors, err := e.store.ListAdvisors(ctx)
	if err != nil {
		return snapshot{}, fmt.Errorf("list advisors: %w: %w", domain.ErrStore, err)
	}
	projects, err := e.store.ListProjects(ctx, ports.ProjectFilter{})
	if err != nil {
		return snapshot{}, fmt.Errorf("list projects: %w: %w", domain.ErrStore, err)
	}
	slots, err := e.store.ListAvailableSlots(ctx, ports.SlotFilter{})
	if err != nil {
		return snapshot{}, fmt.Errorf("list available slots: %w: %w", domain.ErrStore, err)
	}
	filled, err := e.store.ListFilledCandidates(ctx, ports.CandidateFilter{})
	if err != nil {
		return snapshot{}, fmt.Errorf("list filled candidates: %w: %w", domain.ErrStore, err)
	}

	e.debug("catalog loaded", "advisors", len(advisors), "projects", len(projects), "available_slots", len(slots), "filled", len(filled))
	return snapshot{advisors: advisors, projects: projects, slots: slots, filled: filled}, nil
}

func (e *Engine) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) info(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

type slotKey struct {
	projectID string
	profile   string
}

// memoryCatalog holds the bulk-loaded indices. Slots are consumed and filled
// candidates appended as decisions are made, so one batch cannot claim a slot twice.
type memoryCatalog struct {
	matcher   *matching.ProjectMatcher
	byAdvisor map[string][]domain.Project
	available map[slotKey][]domain.Slot
	candidate map[string][]string
	cache     map[string][]matching.KeyedProject
}

func newMemoryCatalog(matcher *matching.ProjectMatcher, snap snapshot) *memoryCatalog {
	c := &memoryCatalog{
		matcher:   matcher,
		byAdvisor: make(map[string][]domain.Project),
		available: make(map[slotKey][]domain.Slot),
		candidate: make(map[string][]string),
		cache:     make(map[string][]matching.KeyedProject),
	}
	for _, p := range snap.projects {
		c.byAdvisor[p.Advisor] = append(c.byAdvisor[p.Advisor], p)
	}
	for _, s := range snap.slots {
		key := slotKey{projectID: s.ProjectID, profile: matching.NormalizeProfile(s.Profile)}
		c.available[key] = append(c.available[key], s)
	}
	for _, f := range snap.filled {
		c.candidate[f.ProjectID] = append(c.candidate[f.ProjectID], f.Candidate)
	}
	return c
}

func (c *memoryCatalog) projects(_ context.Context, advisors []string) ([]matching.KeyedProject, error) {
	var out []matching.KeyedProject
	seen := make(map[string]struct{})
	for _, name := range advisors {
		keyed, ok := c.cache[name]
		if !ok {
			keyed = c.matcher.Keyed(c.byAdvisor[name])
			c.cache[name] = keyed
		}
		for _, kp := range keyed {
			if _, dup := seen[kp.Project.ID]; dup {
				continue
			}
			seen[kp.Project.ID] = struct{}{}
			out = append(out, kp)
		}
	}
	return out, nil
}

func (c *memoryCatalog) filled(_ context.Context, projectID string) ([]string, error) {
	return c.candidate[projectID], nil
}

func (c *memoryCatalog) slot(_ context.Context, projectID, profile string) (domain.Slot, bool, error) {
	key := slotKey{projectID: projectID, profile: profile}
	queue := c.available[key]
	if len(queue) == 0 {
		return domain.Slot{}, false, nil
	}
	c.available[key] = queue[1:]
	return queue[0], true, nil
}

func (c *memoryCatalog) fill(projectID, candidate string) {
	c.candidate[projectID] = append(c.candidate[projectID], candidate)
}
