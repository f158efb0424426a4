package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/matching"
	"ScholarshipScanner/internal/ports"
)

// Merger resolves freshly parsed projects against the projects already stored for
// the same announcement link and hands the resolved payload to the store in one call.
type Merger struct {
	store   ports.AnnouncementStore
	matcher *matching.ProjectMatcher
	newID   func() string
	logger  *slog.Logger
}

// NewMerger uses the merge-specific approximate cutoff of th.
func NewMerger(store ports.AnnouncementStore, th matching.Thresholds, filter *matching.TermFilter, logger *slog.Logger) *Merger {
	th = th.WithDefaults()
	return &Merger{
		store:   store,
		matcher: matching.NewProjectMatcher(filter, th.JaccardCutoff, th.MergeProjectCutoff),
		newID:   func() string { return uuid.NewString() },
		logger:  logger,
	}
}

// Merge upserts draft. Matched projects keep their id and slot history, the rest get new ids.
func (m *Merger) Merge(ctx context.Context, draft domain.AnnouncementDraft) (domain.MergeResult, error) {
	ann := draft.Announcement
	if strings.TrimSpace(ann.Link) == "" {
		return domain.MergeResult{}, fmt.Errorf("merge announcement: %w: empty link", domain.ErrMalformed)
	}

	var existing []matching.KeyedProject
	stored, err := m.store.FindAnnouncement(ctx, ann.Link)
	switch {
	case err == nil:
		ann.ID = stored.ID
		projects, err := m.store.ListProjects(ctx, ports.ProjectFilter{AnnouncementID: stored.ID})
		if err != nil {
			return domain.MergeResult{}, fmt.Errorf("list announcement projects: %w: %w", domain.ErrStore, err)
		}
		existing = m.matcher.Keyed(projects)
	case errors.Is(err, domain.ErrNotFound):
		ann.ID = m.newID()
	default:
		return domain.MergeResult{}, fmt.Errorf("find announcement: %w: %w", domain.ErrStore, err)
	}

	payload := domain.AnnouncementPayload{Announcement: ann}
	result := domain.MergeResult{}
	claimed := make(map[string]struct{}, len(existing))

	for _, pd := range draft.Projects {
		if strings.TrimSpace(pd.Title) == "" {
			m.debug("project without title dropped", "advisor", pd.Advisor)
			continue
		}

		id := ""
		if match, ok := m.match(pd.Title, unclaimed(existing, claimed)); ok {
			id = match.Project.ID
			claimed[id] = struct{}{}
			result.MatchedProjects++
			m.debug("project matched", "title", pd.Title, "project_id", id, "strategy", match.Strategy, "score", match.Score)
		} else {
			id = m.newID()
			result.CreatedProjects++
		}

		payload.Projects = append(payload.Projects, domain.ProjectPayload{
			Project: domain.Project{
				ID:             id,
				AnnouncementID: ann.ID,
				Name:           matching.DisplayName(pd.Title),
				Advisor:        matching.DisplayName(pd.Advisor),
				OrgUnit:        strings.ToUpper(strings.TrimSpace(pd.OrgUnit)),
				Summary:        strings.TrimSpace(pd.Summary),
			},
			Slots: slotDefinitions(pd.Slots),
		})
	}

	id, isNew, err := m.store.MergeAnnouncement(ctx, payload)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("merge announcement: %w: %w", domain.ErrStore, err)
	}
	result.AnnouncementID = id
	result.IsNew = isNew

	if m.logger != nil {
		m.logger.Info("announcement merged",
			"link", ann.Link,
			"announcement_id", id,
			"new", isNew,
			"matched", result.MatchedProjects,
			"created", result.CreatedProjects,
		)
	}
	return result, nil
}

// match runs the cascade; a title whose filtered key is empty falls back to
// equality of the full normalized key.
func (m *Merger) match(title string, pool []matching.KeyedProject) (matching.ProjectMatch, bool) {
	if m.matcher.FilteredKey(title) != "" {
		return m.matcher.MatchKeyed(title, pool)
	}
	key := matching.Key(title)
	if key == "" {
		return matching.ProjectMatch{}, false
	}
	for _, kp := range pool {
		if matching.Key(kp.Project.Name) == key {
			return matching.ProjectMatch{Project: kp.Project, Strategy: matching.StrategyExact, Score: 1}, true
		}
	}
	return matching.ProjectMatch{}, false
}

func unclaimed(keyed []matching.KeyedProject, claimed map[string]struct{}) []matching.KeyedProject {
	if len(claimed) == 0 {
		return keyed
	}
	out := make([]matching.KeyedProject, 0, len(keyed))
	for _, kp := range keyed {
		if _, ok := claimed[kp.Project.ID]; !ok {
			out = append(out, kp)
		}
	}
	return out
}

func slotDefinitions(drafts []domain.SlotDraft) []domain.SlotDefinition {
	defs := make([]domain.SlotDefinition, 0, len(drafts))
	for _, sd := range drafts {
		seats := sd.Seats
		if seats < 1 {
			seats = 1
		}
		defs = append(defs, domain.SlotDefinition{
			Type:        strings.TrimSpace(sd.Type),
			Seats:       seats,
			Profile:     matching.NormalizeProfile(string(sd.Profile)),
			Requirement: strings.TrimSpace(sd.Requirement),
			Stipend:     sd.Stipend,
		})
	}
	return defs
}

func (m *Merger) debug(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}
