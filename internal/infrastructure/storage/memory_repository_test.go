package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/ports"
)

func TestOpenSeats(t *testing.T) {
	t.Parallel()

	def := domain.SlotDefinition{Type: "Bolsa Extensão", Profile: "01", Seats: 2}
	taken := map[openingKey]int{{profile: "01", kind: "Bolsa Extensão"}: 3}

	assert.Equal(t, 0, openSeats(def, taken))
	assert.Equal(t, 1, openSeats(def, taken), "the filled surplus carries to the next definition")
	assert.Equal(t, 2, openSeats(def, taken))
	assert.Equal(t, 1, openSeats(domain.SlotDefinition{Type: "Outra", Profile: "01", Seats: 1}, taken))
}

func TestMemoryMergeKeepsFilledSlots(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRepository()
	payload := domain.AnnouncementPayload{
		Announcement: domain.Announcement{Link: "http://portal/edital"},
		Projects: []domain.ProjectPayload{{
			Project: domain.Project{ID: "p1", Name: "HORTA ESCOLAR", Advisor: "JOSE DA SILVA"},
			Slots:   []domain.SlotDefinition{{Type: "Bolsa", Profile: "01", Seats: 3}},
		}},
	}

	id, isNew, err := r.MergeAnnouncement(ctx, payload)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, id)
	require.Len(t, r.Slots(), 3)

	open, err := r.ListAvailableSlots(ctx, ports.SlotFilter{ProjectIDs: []string{"p1"}, Profile: "01", Limit: 1})
	require.NoError(t, err)
	require.Len(t, open, 1)
	applied, err := r.TransitionSlots(ctx, []domain.SlotTransition{
		{SlotID: open[0].ID, Candidate: "ANA SOUZA"},
		{SlotID: open[0].ID, Candidate: "BRUNO LIMA"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	again, isNew, err := r.MergeAnnouncement(ctx, payload)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, id, again)

	var filled, available int
	for _, s := range r.Slots() {
		if s.Status == domain.SlotFilled {
			filled++
			assert.Equal(t, "ANA SOUZA", s.Candidate)
		} else {
			available++
		}
	}
	assert.Equal(t, 1, filled)
	assert.Equal(t, 2, available)

	projects, err := r.ListProjects(ctx, ports.ProjectFilter{AnnouncementID: id})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, id, projects[0].AnnouncementID)

	advisors, err := r.ListAdvisors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"JOSE DA SILVA"}, advisors)
}

func TestMemoryMergeRejectsEmptyLink(t *testing.T) {
	t.Parallel()

	_, _, err := NewMemoryRepository().MergeAnnouncement(context.Background(), domain.AnnouncementPayload{})
	assert.ErrorIs(t, err, domain.ErrMalformed)
}

func TestMemoryLatestPublicationAndNotifications(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRepository()

	latest, err := r.LatestPublication(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	early := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for link, at := range map[string]time.Time{"http://portal/a": late, "http://portal/b": early} {
		_, _, err := r.MergeAnnouncement(ctx, domain.AnnouncementPayload{
			Announcement: domain.Announcement{Link: link, PublishedAt: &at},
		})
		require.NoError(t, err)
	}

	latest, err = r.LatestPublication(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(late))

	ann, err := r.FindAnnouncement(ctx, "http://portal/a")
	require.NoError(t, err)

	sent, err := r.HasNotification(ctx, ann.ID, domain.NotificationResult)
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, r.RecordNotification(ctx, domain.NotificationRecord{AnnouncementID: ann.ID, Kind: domain.NotificationResult}))

	sent, err = r.HasNotification(ctx, ann.ID, domain.NotificationResult)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = r.HasNotification(ctx, ann.ID, domain.NotificationNewAnnouncement)
	require.NoError(t, err)
	assert.False(t, sent)

	_, err = r.FindAnnouncement(ctx, "http://portal/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryMergeKeepsStoredDates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRepository()
	published := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	deadline := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)

	_, _, err := r.MergeAnnouncement(ctx, domain.AnnouncementPayload{Announcement: domain.Announcement{
		Link: "http://portal/edital", PublishedAt: &published, RegistrationDeadline: &deadline,
	}})
	require.NoError(t, err)

	result := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	_, _, err = r.MergeAnnouncement(ctx, domain.AnnouncementPayload{Announcement: domain.Announcement{
		Link: "http://portal/edital", Title: "Resultado", ResultDate: &result,
	}})
	require.NoError(t, err)

	ann, err := r.FindAnnouncement(ctx, "http://portal/edital")
	require.NoError(t, err)
	assert.Equal(t, "Resultado", ann.Title)
	require.NotNil(t, ann.PublishedAt)
	require.NotNil(t, ann.RegistrationDeadline)
	require.NotNil(t, ann.ResultDate)
	assert.True(t, ann.PublishedAt.Equal(published))
	assert.True(t, ann.RegistrationDeadline.Equal(deadline))
	assert.True(t, ann.ResultDate.Equal(result))
}
