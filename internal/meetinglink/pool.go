// Package meetinglink manages the finite pool of reusable meeting room URLs
// that booked appointments are assigned.
package meetinglink

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

type Stats struct {
	Available int
	InUse     int
}

func (s Stats) Total() int { return s.Available + s.InUse }

type Pool struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Pool)

func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

func NewPool(repo Repository, logger *zap.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{repo: repo, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allocate claims one available link through q. It returns ErrPoolExhausted
// when every link is in use.
func (p *Pool) Allocate(ctx context.Context, q db.Executor) (*MeetingLink, error) {
	link, err := p.repo.ClaimAvailable(ctx, q, p.now())
	if err != nil {
		return nil, err
	}
	p.logger.Debug("meeting link allocated", zap.String("link_id", link.ID().String()))
	return link, nil
}

func (p *Pool) FindByURL(ctx context.Context, q db.Executor, url string) (*MeetingLink, error) {
	return p.repo.GetByURL(ctx, q, url)
}

// Release returns the link with the given URL to the pool.
func (p *Pool) Release(ctx context.Context, q db.Executor, url string) error {
	link, err := p.repo.GetByURL(ctx, q, url)
	if err != nil {
		return err
	}
	if err := link.Release(p.now()); err != nil {
		return err
	}

	ok, err := p.repo.SetStatus(ctx, q, link, StatusInUse)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLinkNotInUse
	}

	p.logger.Debug("meeting link released", zap.String("link_id", link.ID().String()))
	return nil
}

func (p *Pool) Stats(ctx context.Context) (Stats, error) {
	counts, err := p.repo.CountByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("meeting link stats: %w", err)
	}
	return Stats{Available: counts[StatusAvailable], InUse: counts[StatusInUse]}, nil
}

// Provision adds links to the pool, skipping URLs that already exist. It
// returns how many links were actually added.
func (p *Pool) Provision(ctx context.Context, urls []string, newID func() uuid.UUID) (int, error) {
	added := 0
	now := p.now()
	for _, url := range urls {
		link := New(newID(), url, now)
		ok, err := p.repo.Insert(ctx, nil, link)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}
