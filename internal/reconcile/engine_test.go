package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarshipScanner/internal/domain"
	"ScholarshipScanner/internal/infrastructure/storage"
	"ScholarshipScanner/internal/matching"
	"ScholarshipScanner/internal/ports"
)

func seedStore() *storage.MemoryRepository {
	repo := storage.NewMemoryRepository()
	for _, p := range []domain.Project{
		{ID: "p1", Name: "TRILHAS DAS ABELHAS", Advisor: "JOSE DA SILVA"},
		{ID: "p2", Name: "ROBÓTICA EDUCACIONAL", Advisor: "MARIA CRISTINA GAGLIANONE"},
		{ID: "p3", Name: "EDUCAÇÃO AMBIENTAL NAS ESCOLAS", Advisor: "PAULO ROBERTO DIAS"},
		{ID: "p4", Name: "HORTA COMUNITÁRIA", Advisor: "PAULO ROBERTO DIAS"},
	} {
		repo.PutProject(p)
	}
	for _, s := range []domain.Slot{
		{ID: "s1", ProjectID: "p1", Type: "extensao", Profile: "01", Status: domain.SlotAvailable},
		{ID: "s2", ProjectID: "p1", Type: "extensao", Profile: "01", Status: domain.SlotAvailable},
		{ID: "s3", ProjectID: "p1", Type: "extensao", Profile: "02", Status: domain.SlotAvailable},
		{ID: "s4", ProjectID: "p2", Type: "extensao", Profile: "01", Status: domain.SlotAvailable},
		{ID: "s5", ProjectID: "p3", Type: "extensao", Profile: "01", Status: domain.SlotAvailable},
		{ID: "s6", ProjectID: "p4", Type: "extensao", Profile: "01", Status: domain.SlotAvailable},
	} {
		repo.PutSlot(s)
	}
	return repo
}

func slotState(repo *storage.MemoryRepository) map[string]string {
	state := map[string]string{}
	for _, s := range repo.Slots() {
		state[s.ID] = string(s.Status) + ":" + s.Candidate
	}
	return state
}

func slotByID(t *testing.T, repo *storage.MemoryRepository, id string) domain.Slot {
	t.Helper()
	for _, s := range repo.Slots() {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("slot %s not found", id)
	return domain.Slot{}
}

func draft(advisor, project, profile, candidate string) domain.ApprovalDraft {
	return domain.ApprovalDraft{
		Advisor:      advisor,
		ProjectTitle: project,
		Profile:      domain.ProfileCode(profile),
		Candidate:    candidate,
	}
}

func TestEngineFillsSlotOnceAcrossRuns(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository()
	repo.PutProject(domain.Project{ID: "p1", Name: "TRILHAS DAS ABELHAS", Advisor: "JOSE DA SILVA"})
	repo.PutSlot(domain.Slot{ID: "s1", ProjectID: "p1", Profile: "01", Status: domain.SlotAvailable})

	engine := NewEngine(repo, matching.Thresholds{}, nil, nil)
	drafts := []domain.ApprovalDraft{draft("José da Silva", "Trilhas das Abelhas", "1", "Ana Souza")}

	report, err := engine.Reconcile(context.Background(), drafts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, []domain.SlotTransition{{SlotID: "s1", Candidate: "ANA SOUZA"}}, report.Transitions)

	slot := slotByID(t, repo, "s1")
	assert.Equal(t, domain.SlotFilled, slot.Status)
	assert.Equal(t, "ANA SOUZA", slot.Candidate)

	again, err := engine.Reconcile(context.Background(), drafts)
	require.NoError(t, err)
	assert.Zero(t, again.Applied)
	assert.Equal(t, 1, again.Skipped[domain.SkipDuplicate])
}

func TestEngineDeduplicatesCandidateAcrossRunsWithSpareSlots(t *testing.T) {
	t.Parallel()

	repo := seedStore()
	engine := NewEngine(repo, matching.Thresholds{}, nil, nil)
	d := draft("Jose da Silva", "Trilhas das Abelhas", "01", "Ana Souza")

	_, err := engine.Reconcile(context.Background(), []domain.ApprovalDraft{d})
	require.NoError(t, err)
	_, err = engine.Reconcile(context.Background(), []domain.ApprovalDraft{d})
	require.NoError(t, err)

	filled := 0
	for _, s := range repo.Slots() {
		if s.ProjectID == "p1" && s.Status == domain.SlotFilled {
			filled++
		}
	}
	assert.Equal(t, 1, filled)
}

func TestEngineDoesNotClaimSameSlotTwiceInOneBatch(t *testing.T) {
	t.Parallel()

	repo := seedStore()
	engine := NewEngine(repo, matching.Thresholds{}, nil, nil)

	report, err := engine.Reconcile(context.Background(), []domain.ApprovalDraft{
		draft("Jose da Silva", "Trilhas das Abelhas", "1", "Ana Souza"),
		draft("JOSE DA SILVA", "TRILHAS DAS ABELHAS", "01", "ANA SOUZA"),
		draft("Jose da Silva", "Trilhas das Abelhas", "1", "Bruno Lima"),
		draft("Jose da Silva", "Trilhas das Abelhas", "1", "Carla Dias"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Applied)
	assert.Equal(t, 1, report.Skipped[domain.SkipDuplicate])
	assert.Equal(t, 1, report.Skipped[domain.SkipSlotUnavailable])
	assert.Equal(t, "filled:ANA SOUZA", slotState(repo)["s1"])
	assert.Equal(t, "filled:BRUNO LIMA", slotState(repo)["s2"])
}

func TestEngineAmbiguityFallback(t *testing.T) {
	t.Parallel()

	repo := seedStore()
	engine := NewEngine(repo, matching.Thresholds{}, nil, nil)

	report, err := engine.Reconcile(context.Background(), []domain.ApprovalDraft{
		draft("Maria Cristina Gaglianone", "Astronomia para Todos", "1", "Carla Dias"),
		draft("Paulo Roberto Dias", "Astronomia para Todos", "1", "Diego Alves"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, 1, report.Skipped[domain.SkipAmbiguous])
	state := slotState(repo)
	assert.Equal(t, "filled:CARLA DIAS", state["s4"])
	assert.Equal(t, "available:", state["s5"])
	assert.Equal(t, "available:", state["s6"])
}

func TestEngineSkipReasons(t *testing.T) {
	t.Parallel()

	repo := seedStore()
	engine := NewEngine(repo, matching.Thresholds{}, nil, nil)

	report, err := engine.Reconcile(context.Background(), []domain.ApprovalDraft{
		draft("", "Trilhas das Abelhas", "1", "Ana Souza"),
		draft("Jose da Silva", "  ", "1", "Ana Souza"),
		draft("Jose da Silva", "Trilhas das Abelhas", "1", ""),
		draft("Fernando Henrique Cardoso", "Trilhas das Abelhas", "1", "Ana Souza"),
		draft("Jose da Silva", "Trilhas das Abelhas", "07", "Ana Souza"),
	})
	require.NoError(t, err)

	assert.Equal(t, 5, report.Drafts)
	assert.Zero(t, report.Applied)
	assert.Equal(t, 3, report.Skipped[domain.SkipMalformed])
	assert.Equal(t, 1, report.Skipped[domain.SkipAdvisorNotFound])
	assert.Equal(t, 1, report.Skipped[domain.SkipSlotUnavailable])
}

func TestBatchAndRowReachSameSlotStates(t *testing.T) {
	t.Parallel()

	drafts := []domain.ApprovalDraft{
		draft("José da Silva", "Trilhas das Abelhas", "1", "Ana Souza"),
		draft("Jose da Silva", "Projeto Trilhas das Abelhas", "02", "Bruno Lima"),
		draft("Maria Cristina Gaglianone", "Robotica Educacional", "1", "Carla Dias"),
		draft("Paulo Roberto Dias", "Horta Comunitaria", "1", "Diego Alves"),
		draft("Paulo Roberto Dias", "Educacao Ambiental", "1", "Elisa Rocha"),
		draft("Fernando Henrique Cardoso", "Horta Comunitaria", "1", "Fabio Melo"),
	}

	batchRepo := seedStore()
	batch, err := NewEngine(batchRepo, matching.Thresholds{}, nil, nil).Reconcile(context.Background(), drafts)
	require.NoError(t, err)

	rowRepo := seedStore()
	row, err := NewRowReconciler(rowRepo, matching.Thresholds{}, nil, nil).Reconcile(context.Background(), drafts)
	require.NoError(t, err)

	assert.Equal(t, 5, batch.Applied)
	assert.Equal(t, batch.Applied, row.Applied)
	assert.Equal(t, batch.Skipped, row.Skipped)
	assert.Equal(t, slotState(batchRepo), slotState(rowRepo))
}

type failingStore struct {
	*storage.MemoryRepository
	failLoad  bool
	failWrite bool
}

func (f *failingStore) ListAvailableSlots(ctx context.Context, filter ports.SlotFilter) ([]domain.Slot, error) {
	if f.failLoad {
		return nil, errors.New("connection reset")
	}
	return f.MemoryRepository.ListAvailableSlots(ctx, filter)
}

func (f *failingStore) TransitionSlots(ctx context.Context, ts []domain.SlotTransition) (int, error) {
	if f.failWrite {
		return 0, errors.New("connection reset")
	}
	return f.MemoryRepository.TransitionSlots(ctx, ts)
}

func TestEngineStoreFailureDiscardsBatch(t *testing.T) {
	t.Parallel()

	drafts := []domain.ApprovalDraft{draft("Jose da Silva", "Trilhas das Abelhas", "1", "Ana Souza")}

	for _, tc := range []struct {
		name  string
		store *failingStore
	}{
		{name: "load", store: &failingStore{MemoryRepository: seedStore(), failLoad: true}},
		{name: "write", store: &failingStore{MemoryRepository: seedStore(), failWrite: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			report, err := NewEngine(tc.store, matching.Thresholds{}, nil, nil).Reconcile(context.Background(), drafts)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrStore)
			assert.Zero(t, report.Applied)
			assert.Zero(t, report.Planned)
			assert.Empty(t, report.Transitions)
			assert.Equal(t, "available:", slotState(tc.store.MemoryRepository)["s1"])
		})
	}
}

type racingStore struct {
	*storage.MemoryRepository
}

// TransitionSlots lets another writer take every slot first.
func (r *racingStore) TransitionSlots(ctx context.Context, ts []domain.SlotTransition) (int, error) {
	for _, t := range ts {
		if _, err := r.MemoryRepository.TransitionSlots(ctx, []domain.SlotTransition{{SlotID: t.SlotID, Candidate: "OUTRA PESSOA"}}); err != nil {
			return 0, err
		}
	}
	return r.MemoryRepository.TransitionSlots(ctx, ts)
}

func TestEngineCountsConflicts(t *testing.T) {
	t.Parallel()

	store := &racingStore{MemoryRepository: seedStore()}
	report, err := NewEngine(store, matching.Thresholds{}, nil, nil).Reconcile(context.Background(),
		[]domain.ApprovalDraft{draft("Jose da Silva", "Trilhas das Abelhas", "1", "Ana Souza")})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Planned)
	assert.Zero(t, report.Applied)
	assert.Equal(t, 1, report.Skipped[domain.SkipConflict])
	assert.Equal(t, "filled:OUTRA PESSOA", slotState(store.MemoryRepository)["s1"])
}

type cancelOnMatch struct {
	cancel context.CancelFunc
}

func (h cancelOnMatch) Enabled(context.Context, slog.Level) bool { return true }

func (h cancelOnMatch) Handle(_ context.Context, r slog.Record) error {
	if r.Message == "draft matched" {
		h.cancel()
	}
	return nil
}

func (h cancelOnMatch) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h cancelOnMatch) WithGroup(string) slog.Handler      { return h }

type liveContextStore struct {
	*storage.MemoryRepository
}

func (s *liveContextStore) TransitionSlots(ctx context.Context, ts []domain.SlotTransition) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.MemoryRepository.TransitionSlots(ctx, ts)
}

func TestEngineCommitsDecidedTransitionsAfterCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &liveContextStore{MemoryRepository: seedStore()}
	engine := NewEngine(store, matching.Thresholds{}, nil, slog.New(cancelOnMatch{cancel: cancel}))

	report, err := engine.Reconcile(ctx, []domain.ApprovalDraft{
		draft("Jose da Silva", "Trilhas das Abelhas", "1", "Ana Souza"),
		draft("Maria Cristina Gaglianone", "Robotica Educacional", "1", "Carla Dias"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Applied)
	state := slotState(store.MemoryRepository)
	assert.Equal(t, "filled:ANA SOUZA", state["s1"])
	assert.Equal(t, "available:", state["s4"])
}

func TestBatchAndRowBreakTitleTiesTheSameWay(t *testing.T) {
	t.Parallel()

	seed := func() *storage.MemoryRepository {
		repo := storage.NewMemoryRepository()
		repo.PutProject(domain.Project{ID: "p1", Name: "HORTA", Advisor: "JOSE DA SILVA"})
		repo.PutProject(domain.Project{ID: "p3", Name: "TRILHAS DAS ABELHAS", Advisor: "JOSE DA SILVA"})
		repo.PutProject(domain.Project{ID: "p2", Name: "TRILHAS DAS ABELHAS", Advisor: "JOSÉ DA SILVA"})
		for _, id := range []string{"1", "2", "3"} {
			repo.PutSlot(domain.Slot{ID: "s" + id, ProjectID: "p" + id, Type: "extensao", Profile: "01", Status: domain.SlotAvailable})
		}
		return repo
	}
	drafts := []domain.ApprovalDraft{draft("José da Silva", "Trilhas das Abelhas", "1", "Ana Souza")}

	batchRepo := seed()
	_, err := NewEngine(batchRepo, matching.Thresholds{}, nil, nil).Reconcile(context.Background(), drafts)
	require.NoError(t, err)

	rowRepo := seed()
	_, err = NewRowReconciler(rowRepo, matching.Thresholds{}, nil, nil).Reconcile(context.Background(), drafts)
	require.NoError(t, err)

	assert.Equal(t, "filled:ANA SOUZA", slotState(batchRepo)["s2"])
	assert.Equal(t, slotState(batchRepo), slotState(rowRepo))
}

func TestEngineBoilerplateOnlyTitleUsesFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		advisor string
		want    domain.SkipReason
		slot    string
	}{
		{name: "single project advisor", advisor: "Maria Cristina Gaglianone", slot: "s4"},
		{name: "advisor with two projects", advisor: "Paulo Roberto Dias", want: domain.SkipAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := seedStore()
			report, err := NewEngine(repo, matching.Thresholds{}, nil, nil).Reconcile(context.Background(),
				[]domain.ApprovalDraft{draft(tt.advisor, "Projeto de Extensão 01", "1", "Ana Souza")})
			require.NoError(t, err)

			if tt.want != "" {
				assert.Equal(t, 0, report.Applied)
				assert.Equal(t, 1, report.Skipped[tt.want])
				return
			}
			assert.Equal(t, 1, report.Applied)
			assert.Equal(t, "filled:ANA SOUZA", slotState(repo)[tt.slot])
		})
	}
}
