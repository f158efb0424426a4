package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/extraction"
	"ScholarshipScanner/internal/ports"
)

// Reconciler applies approval drafts of a result announcement to the catalog.
type Reconciler interface {
	Reconcile(ctx context.Context, drafts []domain.ApprovalDraft) (domain.ReconcileReport, error)
}

// Merger upserts a parsed inscription announcement.
type Merger interface {
	Merge(ctx context.Context, draft domain.AnnouncementDraft) (domain.MergeResult, error)
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source        ports.AnnouncementSource
	Documents     ports.DocumentFetcher
	Extractor     ports.Extractor
	Store         ports.AnnouncementStore
	Merger        Merger
	Reconciler    Reconciler
	Notifier      ports.Notifier
	Notifications ports.NotificationLog
	Audience      string
	Pause         time.Duration
	Logger        *slog.Logger
}

// Pipeline implements the announcement ingestion workflow.
type Pipeline struct {
	source        ports.AnnouncementSource
	documents     ports.DocumentFetcher
	extractor     ports.Extractor
	store         ports.AnnouncementStore
	merger        Merger
	reconciler    Reconciler
	notifier      ports.Notifier
	notifications ports.NotificationLog
	audience      string
	pause         time.Duration
	logger        *slog.Logger
}

// RunSummary counts what one run did.
type RunSummary struct {
	Listings  int
	Processed int
	Skipped   int
	Failed    int
	Created   int
	Filled    int
	Notified  int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:        deps.Source,
		documents:     deps.Documents,
		extractor:     deps.Extractor,
		store:         deps.Store,
		merger:        deps.Merger,
		reconciler:    deps.Reconciler,
		notifier:      deps.Notifier,
		notifications: deps.Notifications,
		audience:      deps.Audience,
		pause:         deps.Pause,
		logger:        deps.Logger,
	}
}

var errIncomplete = errors.New("announcement incomplete")

// Run fetches announcements newer than the newest stored one and processes them
// oldest first. A failing announcement is logged and the run moves on.
func (p *Pipeline) Run(ctx context.Context, trigger time.Time) (RunSummary, error) {
	var summary RunSummary
	if p.source == nil || p.store == nil {
		return summary, nil
	}

	since, err := p.store.LatestPublication(ctx)
	if err != nil {
		return summary, fmt.Errorf("load latest publication: %w", err)
	}

	listings, err := p.source.FetchListings(ctx, since)
	if err != nil {
		return summary, fmt.Errorf("fetch listings: %w", err)
	}
	summary.Listings = len(listings)
	p.info("run started", "trigger", trigger.Format(time.RFC3339), "since", since, "listings", len(listings))

	for i, listing := range listings {
		if i > 0 {
			if err := p.wait(ctx); err != nil {
				return summary, err
			}
		}

		err := p.process(ctx, listing, trigger, &summary)
		switch {
		case err == nil:
			summary.Processed++
		case errors.Is(err, errIncomplete):
			summary.Skipped++
			p.info("announcement skipped", "title", listing.Title, "reason", err)
		case ctx.Err() != nil:
			return summary, ctx.Err()
		default:
			summary.Failed++
			p.logError("announcement failed", "title", listing.Title, "link", listing.Link, "error", err)
		}
	}

	if summary.Processed > 0 {
		if err := p.store.SetLastDataUpdate(ctx, time.Now().UTC()); err != nil {
			return summary, fmt.Errorf("set last data update: %w", err)
		}
	}

	p.info("run finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"created_projects", summary.Created,
		"filled_slots", summary.Filled,
		"notified", summary.Notified,
	)
	return summary, nil
}

func (p *Pipeline) process(ctx context.Context, listing domain.Listing, trigger time.Time, summary *RunSummary) error {
	switch listing.Stage {
	case domain.StageInscription:
		return p.processInscription(ctx, listing, trigger, summary)
	case domain.StageResult:
		return p.processResult(ctx, listing, summary)
	default:
		return fmt.Errorf("%w: stage %q", errIncomplete, listing.Stage)
	}
}

func (p *Pipeline) processInscription(ctx context.Context, listing domain.Listing, trigger time.Time, summary *RunSummary) error {
	main, projectDocs := splitDocuments(listing.Documents)
	if main == nil || len(projectDocs) == 0 {
		return fmt.Errorf("%w: inscription needs a main and a project document", errIncomplete)
	}

	ann := announcementOf(listing)
	ann.RegistrationDeadline = p.deadline(ctx, listing, *main, trigger)

	var projects []domain.ProjectDraft
	for _, ref := range projectDocs {
		doc, err := p.documents.Fetch(ctx, ref)
		if err != nil {
			p.warn("project document unavailable", "url", ref.URL, "error", err)
			continue
		}
		drafts, err := p.extractor.ExtractProjects(ctx, doc)
		if err != nil {
			return fmt.Errorf("extract projects: %w", err)
		}
		projects = append(projects, drafts...)
	}
	if len(projects) == 0 {
		return fmt.Errorf("%w: no projects extracted", errIncomplete)
	}

	result, err := p.merger.Merge(ctx, domain.AnnouncementDraft{Announcement: ann, Projects: projects})
	if err != nil {
		return fmt.Errorf("merge announcement: %w", err)
	}
	summary.Created += result.CreatedProjects

	if result.IsNew {
		p.notifyOnce(ctx, result.AnnouncementID, domain.NotificationNewAnnouncement,
			newAnnouncementMessage(ann, len(projects)), summary)
	}
	return nil
}

func (p *Pipeline) processResult(ctx context.Context, listing domain.Listing, summary *RunSummary) error {
	main, refs := splitDocuments(listing.Documents)
	if len(refs) == 0 && main != nil {
		refs = []domain.DocumentRef{*main}
	}
	if len(refs) == 0 {
		return fmt.Errorf("%w: result has no documents", errIncomplete)
	}

	var drafts []domain.ApprovalDraft
	for _, ref := range refs {
		doc, err := p.documents.Fetch(ctx, ref)
		if err != nil {
			p.warn("result document unavailable", "url", ref.URL, "error", err)
			continue
		}
		rows, err := p.extractor.ExtractApprovals(ctx, doc)
		if err != nil {
			return fmt.Errorf("extract approvals: %w", err)
		}
		drafts = append(drafts, rows...)
	}

	report, err := p.reconciler.Reconcile(ctx, drafts)
	if err != nil {
		return fmt.Errorf("reconcile approvals: %w", err)
	}
	summary.Filled += report.Applied
	p.info("result reconciled",
		"title", listing.Title,
		"drafts", report.Drafts,
		"applied", report.Applied,
		"skipped", report.SkippedTotal(),
	)

	ann := announcementOf(listing)
	ann.ResultDate = listing.PublishedAt
	merged, err := p.merger.Merge(ctx, domain.AnnouncementDraft{Announcement: ann})
	if err != nil {
		return fmt.Errorf("record result announcement: %w", err)
	}

	if report.Applied > 0 {
		p.notifyOnce(ctx, merged.AnnouncementID, domain.NotificationResult,
			resultMessage(ann, report.Applied), summary)
	}
	return nil
}

// deadline reads the registration deadline from the title, then from the main document.
func (p *Pipeline) deadline(ctx context.Context, listing domain.Listing, main domain.DocumentRef, trigger time.Time) *time.Time {
	year := trigger.Year()
	if listing.PublishedAt != nil {
		year = listing.PublishedAt.Year()
	}
	if d, ok := extraction.DeadlineFromTitle(listing.Title, year); ok {
		return d
	}

	doc, err := p.documents.Fetch(ctx, main)
	if err != nil {
		p.warn("main document unavailable", "url", main.URL, "error", err)
		return nil
	}
	d, err := p.extractor.ExtractDeadline(ctx, doc)
	if err != nil {
		p.warn("deadline not extracted", "url", main.URL, "error", err)
		return nil
	}
	return d
}

// notifyOnce publishes message unless the log already holds (id, kind). Failures
// are logged; they never fail the announcement.
func (p *Pipeline) notifyOnce(ctx context.Context, announcementID string, kind domain.NotificationKind, message string, summary *RunSummary) {
	if p.notifier == nil {
		return
	}
	if p.notifications != nil {
		sent, err := p.notifications.HasNotification(ctx, announcementID, kind)
		if err != nil {
			p.warn("notification log unavailable", "announcement_id", announcementID, "error", err)
			return
		}
		if sent {
			return
		}
	}

	if err := p.notifier.Publish(ctx, message); err != nil {
		p.warn("notification failed", "announcement_id", announcementID, "kind", kind, "error", err)
		return
	}
	summary.Notified++

	if p.notifications != nil {
		err := p.notifications.RecordNotification(ctx, domain.NotificationRecord{
			AnnouncementID: announcementID,
			Kind:           kind,
			Audience:       p.audience,
			Status:         "sent",
		})
		if err != nil {
			p.warn("notification not recorded", "announcement_id", announcementID, "error", err)
		}
	}
}

func (p *Pipeline) wait(ctx context.Context) error {
	if p.pause <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func splitDocuments(refs []domain.DocumentRef) (*domain.DocumentRef, []domain.DocumentRef) {
	var (
		main     *domain.DocumentRef
		projects []domain.DocumentRef
	)
	for i := range refs {
		switch refs[i].Role {
		case domain.DocumentMain:
			if main == nil {
				main = &refs[i]
			}
		case domain.DocumentProject:
			projects = append(projects, refs[i])
		}
	}
	return main, projects
}

func announcementOf(listing domain.Listing) domain.Announcement {
	return domain.Announcement{
		Title:       strings.TrimSpace(listing.Title),
		Link:        listing.Link,
		PublishedAt: listing.PublishedAt,
		Stage:       listing.Stage,
		Modality:    listing.Modality,
	}
}

func newAnnouncementMessage(ann domain.Announcement, projects int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Novo edital*\n%s\n", ann.Title)
	fmt.Fprintf(&b, "Projetos: %d\n", projects)
	if ann.RegistrationDeadline != nil {
		fmt.Fprintf(&b, "Inscrições até %s\n", ann.RegistrationDeadline.Format("02/01/2006"))
	}
	b.WriteString(ann.Link)
	return b.String()
}

func resultMessage(ann domain.Announcement, filled int) string {
	return fmt.Sprintf("*Resultado publicado*\n%s\nBolsas preenchidas: %d\n%s", ann.Title, filled, ann.Link)
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Pipeline) logError(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Error(msg, args...)
	}
}
