package meetinglink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

const linkColumns = `id, url, status, created_at, updated_at`

type PgRepository struct {
	pool db.Executor
}

func NewPgRepository(pool db.Executor) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) exec(q db.Executor) db.Executor {
	if q == nil {
		return r.pool
	}
	return q
}

func scanLink(row pgx.Row) (*MeetingLink, error) {
	var l MeetingLink
	if err := row.Scan(&l.id, &l.url, &l.status, &l.createdAt, &l.updatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// ClaimAvailable picks the least recently used free link. SKIP LOCKED lets
// concurrent bookings each take a different row instead of queueing on the
// same one.
func (r *PgRepository) ClaimAvailable(ctx context.Context, q db.Executor, at time.Time) (*MeetingLink, error) {
	row := r.exec(q).QueryRow(ctx, `
		UPDATE meeting_links
		SET status = $1,
		    updated_at = $3
		WHERE id = (
			SELECT id
			FROM meeting_links
			WHERE status = $2
			ORDER BY updated_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+linkColumns,
		StatusInUse, StatusAvailable, at)

	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPoolExhausted
		}
		return nil, fmt.Errorf("claim meeting link: %w", err)
	}
	return link, nil
}

func (r *PgRepository) GetByURL(ctx context.Context, q db.Executor, url string) (*MeetingLink, error) {
	row := r.exec(q).QueryRow(ctx, `
		SELECT `+linkColumns+`
		FROM meeting_links
		WHERE url = $1
	`, url)

	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("get meeting link: %w", err)
	}
	return link, nil
}

func (r *PgRepository) SetStatus(ctx context.Context, q db.Executor, link *MeetingLink, from Status) (bool, error) {
	tag, err := r.exec(q).Exec(ctx, `
		UPDATE meeting_links
		SET status = $2,
		    updated_at = $3
		WHERE id = $1
		  AND status = $4
	`, link.id, link.status, link.updatedAt, from)
	if err != nil {
		return false, fmt.Errorf("update meeting link status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*)
		FROM meeting_links
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count meeting links: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{StatusAvailable: 0, StatusInUse: 0}
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *PgRepository) Insert(ctx context.Context, q db.Executor, link *MeetingLink) (bool, error) {
	tag, err := r.exec(q).Exec(ctx, `
		INSERT INTO meeting_links (id, url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (url) DO NOTHING
	`, link.id, link.url, link.status, link.createdAt, link.updatedAt)
	if err != nil {
		return false, fmt.Errorf("insert meeting link: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
