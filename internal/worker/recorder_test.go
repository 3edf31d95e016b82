package worker

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/db/models"
	"github.com/cadforge/meshgen/internal/generation"
	"github.com/cadforge/meshgen/internal/mq"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows []*models.Generation
}

func (r *fakeRepo) Create(ctx context.Context, row *models.Generation) (*models.Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, row)
	return row, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	return nil, nil
}

func (r *fakeRepo) DeleteByID(ctx context.Context, id string) error { return nil }

func (r *fakeRepo) ListRecent(ctx context.Context, limit int) ([]models.Generation, error) {
	return nil, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func TestRecorder(t *testing.T) {
	queue, err := mq.NewInMemoryMQ(4)
	require.NoError(t, err)

	repo := &fakeRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		StartRecorder(ctx, queue, repo, zap.NewNop())
		close(done)
	}()

	event := generation.Event{
		ID:         uuid.NewString(),
		Model:      "pot-inner-basic",
		ParamsHash: "deadbeef",
		Parameters: map[string]float64{"height": 60},
		Status:     generation.StatusCompleted,
		Preview:    true,
		DurationMs: 1200,
		CreatedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, queue.Publish(ctx, config.DefaultGenerationsTopic, data))

	require.Eventually(t, func() bool { return repo.count() == 1 },
		time.Second, 10*time.Millisecond)

	repo.mu.Lock()
	row := repo.rows[0]
	repo.mu.Unlock()

	assert.Equal(t, event.ID, row.ID.String())
	assert.Equal(t, "pot-inner-basic", row.Model)
	assert.Equal(t, models.GenerationStatusCompleted, row.Status)
	assert.True(t, row.Preview)
	assert.Equal(t, int64(1200), row.DurationMs)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop on context cancellation")
	}
}

func TestRecorderSkipsMalformedEvents(t *testing.T) {
	queue, err := mq.NewInMemoryMQ(4)
	require.NoError(t, err)

	repo := &fakeRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go StartRecorder(ctx, queue, repo, zap.NewNop())

	require.NoError(t, queue.Publish(ctx, config.DefaultGenerationsTopic, []byte("not json")))

	good := generation.Event{ID: uuid.NewString(), Model: "pot", Status: generation.StatusFailed}
	data, err := json.Marshal(good)
	require.NoError(t, err)
	require.NoError(t, queue.Publish(ctx, config.DefaultGenerationsTopic, data))

	require.Eventually(t, func() bool { return repo.count() == 1 },
		time.Second, 10*time.Millisecond)
}
