package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/ports"
)

const lastDataUpdateKey = "last_data_update"

// PostgresRepository persists announcements, projects, slots and notifications into Postgres.
type PostgresRepository struct {
	db     *sqlx.DB
	schema string
	sb     sq.StatementBuilderType
}

var (
	_ ports.CanonicalStore  = (*PostgresRepository)(nil)
	_ ports.NotificationLog = (*PostgresRepository)(nil)
)

// Open connects to Postgres through lib/pq.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w: %w", domain.ErrStore, err)
	}
	return db, nil
}

// NewPostgresRepository wires a sqlx.DB; schema may be empty for the search path.
func NewPostgresRepository(db *sqlx.DB, schema string) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		schema: schema,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresRepository) table(name string) string {
	if r.schema == "" {
		return name
	}
	return r.schema + "." + name
}

type announcementRow struct {
	ID                   string     `db:"id"`
	Title                string     `db:"title"`
	Link                 string     `db:"link"`
	PublishedAt          *time.Time `db:"published_at"`
	RegistrationDeadline *time.Time `db:"registration_deadline"`
	ResultDate           *time.Time `db:"result_date"`
	Stage                string     `db:"stage"`
	Modality             string     `db:"modality"`
}

func (a announcementRow) toDomain() domain.Announcement {
	return domain.Announcement{
		ID:                   a.ID,
		Title:                a.Title,
		Link:                 a.Link,
		PublishedAt:          a.PublishedAt,
		RegistrationDeadline: a.RegistrationDeadline,
		ResultDate:           a.ResultDate,
		Stage:                domain.Stage(a.Stage),
		Modality:             domain.Modality(a.Modality),
	}
}

// ListAdvisors returns distinct advisor names across all projects.
func (r *PostgresRepository) ListAdvisors(ctx context.Context) ([]string, error) {
	query, args, err := r.sb.Select("DISTINCT advisor").
		From(r.table("projects")).
		Where(sq.NotEq{"advisor": ""}).
		OrderBy("advisor").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build advisors query: %w", err)
	}

	var names []string
	if err := r.db.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, fmt.Errorf("list advisors: %w: %w", domain.ErrStore, err)
	}
	return names, nil
}

func (r *PostgresRepository) projectsQuery(filter ports.ProjectFilter) sq.SelectBuilder {
	q := r.sb.Select("id", "announcement_id", "name", "advisor", "org_unit", "summary").
		From(r.table("projects")).
		OrderBy("name", "id")
	if len(filter.Advisors) > 0 {
		q = q.Where("advisor = ANY(?)", pq.Array(filter.Advisors))
	}
	if filter.AnnouncementID != "" {
		q = q.Where(sq.Eq{"announcement_id": filter.AnnouncementID})
	}
	return q
}

// ListProjects returns projects narrowed by advisor names and announcement.
func (r *PostgresRepository) ListProjects(ctx context.Context, filter ports.ProjectFilter) ([]domain.Project, error) {
	query, args, err := r.projectsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build projects query: %w", err)
	}

	var projects []domain.Project
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, fmt.Errorf("list projects: %w: %w", domain.ErrStore, err)
	}
	return projects, nil
}

func (r *PostgresRepository) availableSlotsQuery(filter ports.SlotFilter) sq.SelectBuilder {
	q := r.sb.Select("id", "project_id", "type", "profile", "status", "candidate", "requirement", "stipend").
		From(r.table("slots")).
		Where(sq.Eq{"status": string(domain.SlotAvailable)}).
		OrderBy("created_at", "id")
	if len(filter.ProjectIDs) > 0 {
		q = q.Where("project_id = ANY(?::uuid[])", pq.Array(filter.ProjectIDs))
	}
	if filter.Profile != "" {
		q = q.Where(sq.Eq{"profile": filter.Profile})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	return q
}

// ListAvailableSlots returns open slots in creation order.
func (r *PostgresRepository) ListAvailableSlots(ctx context.Context, filter ports.SlotFilter) ([]domain.Slot, error) {
	query, args, err := r.availableSlotsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build slots query: %w", err)
	}

	var slots []domain.Slot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list available slots: %w: %w", domain.ErrStore, err)
	}
	return slots, nil
}

// ListFilledCandidates returns the candidates already placed on filled slots.
func (r *PostgresRepository) ListFilledCandidates(ctx context.Context, filter ports.CandidateFilter) ([]domain.FilledCandidate, error) {
	q := r.sb.Select("project_id", "candidate").
		From(r.table("slots")).
		Where(sq.Eq{"status": string(domain.SlotFilled)})
	if len(filter.ProjectIDs) > 0 {
		q = q.Where("project_id = ANY(?::uuid[])", pq.Array(filter.ProjectIDs))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build candidates query: %w", err)
	}

	var filled []domain.FilledCandidate
	if err := r.db.SelectContext(ctx, &filled, query, args...); err != nil {
		return nil, fmt.Errorf("list filled candidates: %w: %w", domain.ErrStore, err)
	}
	return filled, nil
}

func (r *PostgresRepository) transitionQuery(t domain.SlotTransition) sq.UpdateBuilder {
	return r.sb.Update(r.table("slots")).
		Set("status", string(domain.SlotFilled)).
		Set("candidate", t.Candidate).
		Where(sq.Eq{"id": t.SlotID, "status": string(domain.SlotAvailable)})
}

// TransitionSlots fills slots that are still available in one transaction.
// Rows another writer filled first are left alone and not counted.
func (r *PostgresRepository) TransitionSlots(ctx context.Context, transitions []domain.SlotTransition) (int, error) {
	if len(transitions) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transition: %w: %w", domain.ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	applied := 0
	for _, t := range transitions {
		query, args, err := r.transitionQuery(t).ToSql()
		if err != nil {
			return 0, fmt.Errorf("build transition: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("transition slot %s: %w: %w", t.SlotID, domain.ErrStore, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("transition slot %s: %w: %w", t.SlotID, domain.ErrStore, err)
		}
		applied += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transition: %w: %w", domain.ErrStore, err)
	}
	return applied, nil
}

func (r *PostgresRepository) announcementColumns() []string {
	return []string{"id", "title", "link", "published_at", "registration_deadline", "result_date", "stage", "modality"}
}

// FindAnnouncement looks an announcement up by its link.
func (r *PostgresRepository) FindAnnouncement(ctx context.Context, link string) (domain.Announcement, error) {
	query, args, err := r.sb.Select(r.announcementColumns()...).
		From(r.table("announcements")).
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return domain.Announcement{}, fmt.Errorf("build announcement query: %w", err)
	}

	var row announcementRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Announcement{}, fmt.Errorf("announcement %s: %w", link, domain.ErrNotFound)
		}
		return domain.Announcement{}, fmt.Errorf("find announcement: %w: %w", domain.ErrStore, err)
	}
	return row.toDomain(), nil
}

func (r *PostgresRepository) upsertAnnouncementQuery(ann domain.Announcement) sq.InsertBuilder {
	return r.sb.Insert(r.table("announcements")+" AS a").
		Columns(r.announcementColumns()...).
		Values(ann.ID, ann.Title, ann.Link, ann.PublishedAt, ann.RegistrationDeadline, ann.ResultDate,
			string(ann.Stage), string(ann.Modality)).
		Suffix(`ON CONFLICT (link) DO UPDATE SET
            title = EXCLUDED.title,
            published_at = COALESCE(EXCLUDED.published_at, a.published_at),
            registration_deadline = COALESCE(EXCLUDED.registration_deadline, a.registration_deadline),
            result_date = COALESCE(EXCLUDED.result_date, a.result_date),
            stage = EXCLUDED.stage,
            modality = EXCLUDED.modality,
            updated_at = NOW()
        RETURNING id, (xmax = 0) AS inserted`)
}

func (r *PostgresRepository) upsertProjectQuery(p domain.Project) sq.InsertBuilder {
	return r.sb.Insert(r.table("projects")+" AS p").
		Columns("id", "announcement_id", "name", "advisor", "org_unit", "summary").
		Values(p.ID, p.AnnouncementID, p.Name, p.Advisor, p.OrgUnit, p.Summary).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
            announcement_id = EXCLUDED.announcement_id,
            name = EXCLUDED.name,
            advisor = EXCLUDED.advisor,
            org_unit = EXCLUDED.org_unit,
            summary = COALESCE(NULLIF(EXCLUDED.summary, ''), p.summary)`)
}

// MergeAnnouncement upserts the announcement by link and, per project, replaces the
// available slots with the open seats left after the filled ones, in one transaction.
func (r *PostgresRepository) MergeAnnouncement(ctx context.Context, payload domain.AnnouncementPayload) (string, bool, error) {
	ann := payload.Announcement
	if ann.Link == "" {
		return "", false, fmt.Errorf("merge announcement: %w: empty link", domain.ErrMalformed)
	}
	if ann.ID == "" {
		ann.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin merge: %w: %w", domain.ErrStore, err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.upsertAnnouncementQuery(ann).ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build announcement upsert: %w", err)
	}
	var (
		id       string
		inserted bool
	)
	if err := tx.QueryRowxContext(ctx, query, args...).Scan(&id, &inserted); err != nil {
		return "", false, fmt.Errorf("upsert announcement: %w: %w", domain.ErrStore, err)
	}

	for _, pp := range payload.Projects {
		project := pp.Project
		project.AnnouncementID = id
		if err := r.mergeProject(ctx, tx, project, pp.Slots); err != nil {
			return "", false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit merge: %w: %w", domain.ErrStore, err)
	}
	return id, inserted, nil
}

func (r *PostgresRepository) mergeProject(ctx context.Context, tx *sqlx.Tx, project domain.Project, defs []domain.SlotDefinition) error {
	query, args, err := r.upsertProjectQuery(project).ToSql()
	if err != nil {
		return fmt.Errorf("build project upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert project %s: %w: %w", project.ID, domain.ErrStore, err)
	}

	query, args, err = r.sb.Select("profile", "type", "COUNT(*) AS filled").
		From(r.table("slots")).
		Where(sq.Eq{"project_id": project.ID, "status": string(domain.SlotFilled)}).
		GroupBy("profile", "type").
		ToSql()
	if err != nil {
		return fmt.Errorf("build filled count: %w", err)
	}
	var counts []struct {
		Profile string `db:"profile"`
		Type    string `db:"type"`
		Filled  int    `db:"filled"`
	}
	if err := tx.SelectContext(ctx, &counts, query, args...); err != nil {
		return fmt.Errorf("count filled slots: %w: %w", domain.ErrStore, err)
	}
	taken := map[openingKey]int{}
	for _, c := range counts {
		taken[openingKey{profile: c.Profile, kind: c.Type}] = c.Filled
	}

	query, args, err = r.sb.Delete(r.table("slots")).
		Where(sq.Eq{"project_id": project.ID, "status": string(domain.SlotAvailable)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build slot cleanup: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("drop open slots: %w: %w", domain.ErrStore, err)
	}

	insert := r.sb.Insert(r.table("slots")).
		Columns("id", "project_id", "type", "profile", "status", "requirement", "stipend")
	rows := 0
	for _, def := range defs {
		for range openSeats(def, taken) {
			insert = insert.Values(uuid.NewString(), project.ID, def.Type, def.Profile,
				string(domain.SlotAvailable), def.Requirement, def.Stipend)
			rows++
		}
	}
	if rows == 0 {
		return nil
	}

	query, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("build slot insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert open slots: %w: %w", domain.ErrStore, err)
	}
	return nil
}

// LatestPublication returns the newest stored publication date.
func (r *PostgresRepository) LatestPublication(ctx context.Context) (*time.Time, error) {
	query, args, err := r.sb.Select("MAX(published_at)").From(r.table("announcements")).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest publication query: %w", err)
	}

	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest, query, args...); err != nil {
		return nil, fmt.Errorf("latest publication: %w: %w", domain.ErrStore, err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

// SetLastDataUpdate stores the instant of the last run that processed data.
func (r *PostgresRepository) SetLastDataUpdate(ctx context.Context, at time.Time) error {
	query, args, err := r.sb.Insert(r.table("metadata")).
		Columns("key", "value").
		Values(lastDataUpdateKey, at).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build metadata upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set last data update: %w: %w", domain.ErrStore, err)
	}
	return nil
}

// HasNotification reports whether the announcement was already announced for kind.
func (r *PostgresRepository) HasNotification(ctx context.Context, announcementID string, kind domain.NotificationKind) (bool, error) {
	query, args, err := r.sb.Select("COUNT(*) > 0").
		From(r.table("notifications")).
		Where(sq.Eq{"announcement_id": announcementID, "kind": string(kind)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build notification query: %w", err)
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("check notification: %w: %w", domain.ErrStore, err)
	}
	return exists, nil
}

// RecordNotification stores a sent notification; repeats are ignored.
func (r *PostgresRepository) RecordNotification(ctx context.Context, record domain.NotificationRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	query, args, err := r.sb.Insert(r.table("notifications")).
		Columns("announcement_id", "kind", "audience", "status", "created_at").
		Values(record.AnnouncementID, string(record.Kind), record.Audience, record.Status, record.CreatedAt).
		Suffix("ON CONFLICT (announcement_id, kind, audience) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build notification insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record notification: %w: %w", domain.ErrStore, err)
	}
	return nil
}
