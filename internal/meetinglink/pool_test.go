package meetinglink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

// memRepo serialises claims the way the row lock does in Postgres.
type memRepo struct {
	mu    sync.Mutex
	links []*MeetingLink
}

func (m *memRepo) ClaimAvailable(ctx context.Context, q db.Executor, at time.Time) (*MeetingLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.Claim(at) == nil {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrPoolExhausted
}

func (m *memRepo) GetByURL(ctx context.Context, q db.Executor, url string) (*MeetingLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.url == url {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrLinkNotFound
}

func (m *memRepo) SetStatus(ctx context.Context, q db.Executor, link *MeetingLink, from Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.id == link.id && l.status == from {
			l.status = link.status
			l.updatedAt = link.updatedAt
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[Status]int{}
	for _, l := range m.links {
		counts[l.status]++
	}
	return counts, nil
}

func (m *memRepo) Insert(ctx context.Context, q db.Executor, link *MeetingLink) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.url == link.url {
			return false, nil
		}
	}
	cp := *link
	m.links = append(m.links, &cp)
	return true, nil
}

func TestAllocateConcurrentlyHandsOutDistinctLinks(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	pool := NewPool(repo, nil)

	_, err := pool.Provision(ctx, []string{"https://meet.example.com/1", "https://meet.example.com/2", "https://meet.example.com/3"}, uuid.New)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		urls      = map[string]int{}
		exhausted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			link, err := pool.Allocate(ctx, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrPoolExhausted)
				exhausted++
				return
			}
			urls[link.URL()]++
		}()
	}
	wg.Wait()

	assert.Len(t, urls, 3)
	for url, n := range urls {
		assert.Equal(t, 1, n, url)
	}
	assert.Equal(t, 7, exhausted)

	stats, err := pool.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Available: 0, InUse: 3}, stats)
}

func TestReleaseReturnsLinkToPool(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	pool := NewPool(repo, nil)
	_, err := pool.Provision(ctx, []string{"https://meet.example.com/1"}, uuid.New)
	require.NoError(t, err)

	link, err := pool.Allocate(ctx, nil)
	require.NoError(t, err)
	_, err = pool.Allocate(ctx, nil)
	require.ErrorIs(t, err, ErrPoolExhausted)

	require.NoError(t, pool.Release(ctx, nil, link.URL()))
	assert.ErrorIs(t, pool.Release(ctx, nil, link.URL()), ErrLinkNotInUse)
	assert.ErrorIs(t, pool.Release(ctx, nil, "https://meet.example.com/unknown"), ErrLinkNotFound)

	again, err := pool.Allocate(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, link.URL(), again.URL())
}

func TestMeetingLinkTransitions(t *testing.T) {
	now := time.Date(2023, 6, 18, 9, 0, 0, 0, time.UTC)
	link := New(uuid.New(), "https://meet.example.com/x", now)

	assert.ErrorIs(t, link.Release(now), ErrLinkNotInUse)
	require.NoError(t, link.Claim(now.Add(time.Minute)))
	assert.Equal(t, StatusInUse, link.Status())
	assert.ErrorIs(t, link.Claim(now), ErrLinkInUse)
	require.NoError(t, link.Release(now.Add(2*time.Minute)))
	assert.Equal(t, StatusAvailable, link.Status())
	assert.Equal(t, now.Add(2*time.Minute), link.UpdatedAt())
}

func TestProvisionCountsOnlyNewLinks(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	pool := NewPool(repo, nil)

	added, err := pool.Provision(ctx, []string{"https://meet.example.com/1", "https://meet.example.com/2"}, uuid.New)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = pool.Provision(ctx, []string{"https://meet.example.com/2", "https://meet.example.com/3"}, uuid.New)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	stats, err := pool.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total())
}
