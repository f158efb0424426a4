package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ScholarshipScanner/internal/infrastructure/storage"
)

type manualDriver struct {
	job     func(time.Time)
	stopped bool
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.job = job
	return nil
}

func (d *manualDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	source := &stubSource{}
	pipeline := NewPipeline(PipelineDeps{Source: source, Store: storage.NewMemoryRepository()})
	driver := &manualDriver{}
	s := NewScheduler(driver, pipeline, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NotNil(t, driver.job)

	driver.job(time.Now())
	assert.Len(t, source.since, 1)

	s.running.Lock()
	driver.job(time.Now())
	s.running.Unlock()
	assert.Len(t, source.since, 1, "a run in progress must not be overlapped")

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}
