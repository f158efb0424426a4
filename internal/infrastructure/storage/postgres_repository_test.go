package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/ports"
)

const testDSNEnv = "SCHOLARSHIP_SCANNER_TEST_DSN"

func TestTransitionQueryIsConditional(t *testing.T) {
	t.Parallel()

	r := NewPostgresRepository(nil, "")
	query, args, err := r.transitionQuery(domain.SlotTransition{SlotID: "s1", Candidate: "Ana Souza"}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "UPDATE slots SET status = $1, candidate = $2 WHERE id = $3 AND status = $4", query)
	assert.Equal(t, []any{"filled", "Ana Souza", "s1", "available"}, args)
}

func TestAvailableSlotsQuery(t *testing.T) {
	t.Parallel()

	r := NewPostgresRepository(nil, "editais")
	query, args, err := r.availableSlotsQuery(ports.SlotFilter{ProjectIDs: []string{"p1"}, Profile: "2", Limit: 1}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "FROM editais.slots")
	assert.Contains(t, query, "status = $1")
	assert.Contains(t, query, "project_id = ANY($2::uuid[])")
	assert.Contains(t, query, "profile = $3")
	assert.Contains(t, query, "ORDER BY created_at, id")
	assert.Contains(t, query, "LIMIT 1")
	assert.Len(t, args, 3)
}

func TestProjectsQueryFilters(t *testing.T) {
	t.Parallel()

	r := NewPostgresRepository(nil, "")

	query, args, err := r.projectsQuery(ports.ProjectFilter{}).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, query, "WHERE")
	assert.Empty(t, args)

	query, args, err = r.projectsQuery(ports.ProjectFilter{Advisors: []string{"JOSE DA SILVA"}, AnnouncementID: "a1"}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, query, "advisor = ANY($1)")
	assert.Contains(t, query, "announcement_id = $2")
	assert.Len(t, args, 2)
}

func TestAnnouncementUpsertReportsInsert(t *testing.T) {
	t.Parallel()

	r := NewPostgresRepository(nil, "")
	query, _, err := r.upsertAnnouncementQuery(domain.Announcement{ID: "a1", Link: "http://portal/edital"}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, query, "INSERT INTO announcements AS a")
	assert.Contains(t, query, "ON CONFLICT (link) DO UPDATE")
	assert.Contains(t, query, "RETURNING id, (xmax = 0) AS inserted")
}

// TestPostgresRepositoryRoundTrip runs against a real database when one is configured.
func TestPostgresRepositoryRoundTrip(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	schema := "test_" + uuid.NewString()[:8]
	r := NewPostgresRepository(db, schema)
	require.NoError(t, r.Migrate(ctx))
	defer func() { _, _ = db.ExecContext(ctx, "DROP SCHEMA "+schema+" CASCADE") }()

	published := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	projectID := uuid.NewString()
	payload := domain.AnnouncementPayload{
		Announcement: domain.Announcement{
			Title:       "Inscrições PROEX 2025",
			Link:        "http://portal/edital-" + schema,
			PublishedAt: &published,
			Stage:       domain.StageInscription,
			Modality:    domain.ModalityExtension,
		},
		Projects: []domain.ProjectPayload{{
			Project: domain.Project{ID: projectID, Name: "Trilhas das Abelhas", Advisor: "Maria Cristina Gaglianone"},
			Slots:   []domain.SlotDefinition{{Type: "Bolsa Extensão", Seats: 2, Profile: "1"}},
		}},
	}

	id, isNew, err := r.MergeAnnouncement(ctx, payload)
	require.NoError(t, err)
	assert.True(t, isNew)

	slots, err := r.ListAvailableSlots(ctx, ports.SlotFilter{ProjectIDs: []string{projectID}, Profile: "1"})
	require.NoError(t, err)
	require.Len(t, slots, 2)

	applied, err := r.TransitionSlots(ctx, []domain.SlotTransition{
		{SlotID: slots[0].ID, Candidate: "Ana Souza"},
		{SlotID: slots[0].ID, Candidate: "Bruno Lima"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	again, isNew, err := r.MergeAnnouncement(ctx, payload)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, id, again)

	slots, err = r.ListAvailableSlots(ctx, ports.SlotFilter{ProjectIDs: []string{projectID}})
	require.NoError(t, err)
	assert.Len(t, slots, 1)

	filled, err := r.ListFilledCandidates(ctx, ports.CandidateFilter{ProjectIDs: []string{projectID}})
	require.NoError(t, err)
	assert.Equal(t, []domain.FilledCandidate{{ProjectID: projectID, Candidate: "Ana Souza"}}, filled)

	latest, err := r.LatestPublication(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(published))

	has, err := r.HasNotification(ctx, id, domain.NotificationNewAnnouncement)
	require.NoError(t, err)
	assert.False(t, has)
	require.NoError(t, r.RecordNotification(ctx, domain.NotificationRecord{AnnouncementID: id, Kind: domain.NotificationNewAnnouncement}))
	require.NoError(t, r.RecordNotification(ctx, domain.NotificationRecord{AnnouncementID: id, Kind: domain.NotificationNewAnnouncement}))
	has, err = r.HasNotification(ctx, id, domain.NotificationNewAnnouncement)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, r.SetLastDataUpdate(ctx, time.Now()))

	_, err = r.FindAnnouncement(ctx, "http://portal/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
