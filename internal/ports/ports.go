package ports

import (
	"context"
	"time"

	"ScholarshipScanner/internal/domain"
)

// AnnouncementSource lists announcements published after since (nil means everything).
type AnnouncementSource interface {
	FetchListings(ctx context.Context, since *time.Time) ([]domain.Listing, error)
}

// DocumentFetcher downloads an attachment and reduces it to text.
type DocumentFetcher interface {
	Fetch(ctx context.Context, ref domain.DocumentRef) (domain.Document, error)
}

// Extractor turns document text into draft records.
type Extractor interface {
	ExtractApprovals(ctx context.Context, doc domain.Document) ([]domain.ApprovalDraft, error)
	ExtractProjects(ctx context.Context, doc domain.Document) ([]domain.ProjectDraft, error)
	ExtractDeadline(ctx context.Context, doc domain.Document) (*time.Time, error)
}

// ProjectFilter narrows ListProjects. Empty fields do not filter.
type ProjectFilter struct {
	Advisors       []string
	AnnouncementID string
}

// SlotFilter narrows ListAvailableSlots. Limit <= 0 means no limit.
type SlotFilter struct {
	ProjectIDs []string
	Profile    string
	Limit      int
}

// CandidateFilter narrows ListFilledCandidates.
type CandidateFilter struct {
	ProjectIDs []string
}

// CatalogReader exposes the canonical records matching runs against.
type CatalogReader interface {
	ListAdvisors(ctx context.Context) ([]string, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]domain.Project, error)
	ListAvailableSlots(ctx context.Context, filter SlotFilter) ([]domain.Slot, error)
	ListFilledCandidates(ctx context.Context, filter CandidateFilter) ([]domain.FilledCandidate, error)
}

// SlotWriter applies available->filled transitions. A transition whose slot is no
// longer available is not applied and not an error; the count reports applied rows.
type SlotWriter interface {
	TransitionSlots(ctx context.Context, transitions []domain.SlotTransition) (int, error)
}

// AnnouncementStore persists announcements and their projects.
type AnnouncementStore interface {
	FindAnnouncement(ctx context.Context, link string) (domain.Announcement, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]domain.Project, error)
	MergeAnnouncement(ctx context.Context, payload domain.AnnouncementPayload) (string, bool, error)
	LatestPublication(ctx context.Context) (*time.Time, error)
	SetLastDataUpdate(ctx context.Context, at time.Time) error
}

// CanonicalStore is the full persistence collaborator.
type CanonicalStore interface {
	CatalogReader
	SlotWriter
	AnnouncementStore
}

// NotificationLog remembers which announcements were already announced.
type NotificationLog interface {
	HasNotification(ctx context.Context, announcementID string, kind domain.NotificationKind) (bool, error)
	RecordNotification(ctx context.Context, record domain.NotificationRecord) error
}

// Notifier streams messages to Telegram or other channels.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
