package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/matching"
	"ScholarshipScanner/internal/ports"
)

// MemoryRepository keeps the canonical store in process. It backs dry runs and tests.
type MemoryRepository struct {
	mu            sync.Mutex
	announcements map[string]domain.Announcement
	projects      []domain.Project
	slots         []domain.Slot
	notifications []domain.NotificationRecord
	lastUpdate    *time.Time
}

var (
	_ ports.CanonicalStore  = (*MemoryRepository)(nil)
	_ ports.NotificationLog = (*MemoryRepository)(nil)
)

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{announcements: map[string]domain.Announcement{}}
}

// PutProject inserts or replaces a project.
func (r *MemoryRepository) PutProject(p domain.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putProject(p)
}

// PutSlot inserts or replaces a slot.
func (r *MemoryRepository) PutSlot(s domain.Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.IndexFunc(r.slots, func(x domain.Slot) bool { return x.ID == s.ID }); i >= 0 {
		r.slots[i] = s
		return
	}
	r.slots = append(r.slots, s)
}

// Slots returns a copy of every stored slot in insertion order.
func (r *MemoryRepository) Slots() []domain.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.slots)
}

// LastDataUpdate returns the last value passed to SetLastDataUpdate.
func (r *MemoryRepository) LastDataUpdate() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpdate
}

func (r *MemoryRepository) ListAdvisors(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for _, p := range r.projects {
		if p.Advisor != "" && !slices.Contains(names, p.Advisor) {
			names = append(names, p.Advisor)
		}
	}
	return names, nil
}

func (r *MemoryRepository) ListProjects(ctx context.Context, filter ports.ProjectFilter) ([]domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Project
	for _, p := range r.projects {
		if len(filter.Advisors) > 0 && !slices.Contains(filter.Advisors, p.Advisor) {
			continue
		}
		if filter.AnnouncementID != "" && p.AnnouncementID != filter.AnnouncementID {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *MemoryRepository) ListAvailableSlots(ctx context.Context, filter ports.SlotFilter) ([]domain.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Slot
	for _, s := range r.slots {
		if s.Status != domain.SlotAvailable {
			continue
		}
		if len(filter.ProjectIDs) > 0 && !slices.Contains(filter.ProjectIDs, s.ProjectID) {
			continue
		}
		if filter.Profile != "" && matching.NormalizeProfile(s.Profile) != filter.Profile {
			continue
		}
		out = append(out, s)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListFilledCandidates(ctx context.Context, filter ports.CandidateFilter) ([]domain.FilledCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.FilledCandidate
	for _, s := range r.slots {
		if s.Status != domain.SlotFilled {
			continue
		}
		if len(filter.ProjectIDs) > 0 && !slices.Contains(filter.ProjectIDs, s.ProjectID) {
			continue
		}
		out = append(out, domain.FilledCandidate{ProjectID: s.ProjectID, Candidate: s.Candidate})
	}
	return out, nil
}

// TransitionSlots fills only slots that are still available.
func (r *MemoryRepository) TransitionSlots(ctx context.Context, transitions []domain.SlotTransition) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := 0
	for _, t := range transitions {
		for i := range r.slots {
			if r.slots[i].ID == t.SlotID && r.slots[i].Status == domain.SlotAvailable {
				r.slots[i].Status = domain.SlotFilled
				r.slots[i].Candidate = t.Candidate
				applied++
				break
			}
		}
	}
	return applied, nil
}

func (r *MemoryRepository) FindAnnouncement(ctx context.Context, link string) (domain.Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ann, ok := r.announcements[link]
	if !ok {
		return domain.Announcement{}, fmt.Errorf("announcement %s: %w", link, domain.ErrNotFound)
	}
	return ann, nil
}

// MergeAnnouncement upserts the announcement by link and replaces the unfilled
// slots of every payload project under one lock.
func (r *MemoryRepository) MergeAnnouncement(ctx context.Context, payload domain.AnnouncementPayload) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ann := payload.Announcement
	if ann.Link == "" {
		return "", false, fmt.Errorf("merge announcement: %w: empty link", domain.ErrMalformed)
	}

	stored, exists := r.announcements[ann.Link]
	switch {
	case exists:
		ann.ID = stored.ID
		ann.PublishedAt = cmp.Or(ann.PublishedAt, stored.PublishedAt)
		ann.RegistrationDeadline = cmp.Or(ann.RegistrationDeadline, stored.RegistrationDeadline)
		ann.ResultDate = cmp.Or(ann.ResultDate, stored.ResultDate)
	case ann.ID == "":
		ann.ID = uuid.NewString()
	}
	r.announcements[ann.Link] = ann

	for _, pp := range payload.Projects {
		project := pp.Project
		project.AnnouncementID = ann.ID
		r.putProject(project)
		r.replaceOpenSlots(project.ID, pp.Slots)
	}

	return ann.ID, !exists, nil
}

func (r *MemoryRepository) LatestPublication(ctx context.Context) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *time.Time
	for _, ann := range r.announcements {
		if ann.PublishedAt != nil && (latest == nil || ann.PublishedAt.After(*latest)) {
			at := *ann.PublishedAt
			latest = &at
		}
	}
	return latest, nil
}

func (r *MemoryRepository) SetLastDataUpdate(ctx context.Context, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastUpdate = &at
	return nil
}

func (r *MemoryRepository) HasNotification(ctx context.Context, announcementID string, kind domain.NotificationKind) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.ContainsFunc(r.notifications, func(n domain.NotificationRecord) bool {
		return n.AnnouncementID == announcementID && n.Kind == kind
	}), nil
}

func (r *MemoryRepository) RecordNotification(ctx context.Context, record domain.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	r.notifications = append(r.notifications, record)
	return nil
}

func (r *MemoryRepository) putProject(p domain.Project) {
	if i := slices.IndexFunc(r.projects, func(x domain.Project) bool { return x.ID == p.ID }); i >= 0 {
		r.projects[i] = p
		return
	}
	r.projects = append(r.projects, p)
}

func (r *MemoryRepository) replaceOpenSlots(projectID string, defs []domain.SlotDefinition) {
	taken := map[openingKey]int{}
	kept := r.slots[:0]
	for _, s := range r.slots {
		if s.ProjectID != projectID {
			kept = append(kept, s)
			continue
		}
		if s.Status == domain.SlotFilled {
			taken[openingKey{profile: s.Profile, kind: s.Type}]++
			kept = append(kept, s)
		}
	}
	r.slots = kept

	for _, def := range defs {
		for range openSeats(def, taken) {
			r.slots = append(r.slots, domain.Slot{
				ID:          uuid.NewString(),
				ProjectID:   projectID,
				Type:        def.Type,
				Profile:     def.Profile,
				Status:      domain.SlotAvailable,
				Requirement: def.Requirement,
				Stipend:     def.Stipend,
			})
		}
	}
}
