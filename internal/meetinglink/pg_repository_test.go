package meetinglink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linkColumnNames = []string{"id", "url", "status", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func TestPgClaimAvailable(t *testing.T) {
	mock, repo := newMockRepo(t)
	ctx := context.Background()
	at := time.Date(2023, 6, 18, 9, 0, 0, 0, time.UTC)
	id := uuid.New()

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(StatusInUse, StatusAvailable, at).
		WillReturnRows(pgxmock.NewRows(linkColumnNames).
			AddRow(id, "https://meet.example.com/a", StatusInUse, at.Add(-time.Hour), at))

	link, err := repo.ClaimAvailable(ctx, nil, at)
	require.NoError(t, err)
	assert.Equal(t, id, link.ID())
	assert.Equal(t, StatusInUse, link.Status())

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(StatusInUse, StatusAvailable, at).
		WillReturnRows(pgxmock.NewRows(linkColumnNames))

	_, err = repo.ClaimAvailable(ctx, nil, at)
	assert.ErrorIs(t, err, ErrPoolExhausted)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(StatusInUse, StatusAvailable, at).
		WillReturnError(errors.New("conn closed"))

	_, err = repo.ClaimAvailable(ctx, nil, at)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPoolExhausted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetByURLMissing(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`WHERE url = \$1`).
		WithArgs("https://meet.example.com/none").
		WillReturnRows(pgxmock.NewRows(linkColumnNames))

	_, err := repo.GetByURL(context.Background(), nil, "https://meet.example.com/none")
	assert.ErrorIs(t, err, ErrLinkNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCountByStatus(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery(`GROUP BY status`).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).AddRow(StatusAvailable, 7))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, counts[StatusAvailable])
	assert.Equal(t, 0, counts[StatusInUse])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolReleaseInTx(t *testing.T) {
	mock, repo := newMockRepo(t)
	ctx := context.Background()
	now := time.Date(2023, 6, 18, 9, 0, 0, 0, time.UTC)
	pool := NewPool(repo, nil, WithClock(func() time.Time { return now }))
	id := uuid.New()
	url := "https://meet.example.com/b"

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE url = \$1`).
		WithArgs(url).
		WillReturnRows(pgxmock.NewRows(linkColumnNames).AddRow(id, url, StatusInUse, now.Add(-time.Hour), now.Add(-time.Hour)))
	mock.ExpectExec(`UPDATE meeting_links`).
		WithArgs(id, StatusAvailable, now, StatusInUse).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	tx, err := mock.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, pool.Release(ctx, tx, url))
	require.NoError(t, tx.Commit(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolReleaseAvailableLink(t *testing.T) {
	mock, repo := newMockRepo(t)
	pool := NewPool(repo, nil)
	url := "https://meet.example.com/c"

	mock.ExpectQuery(`WHERE url = \$1`).
		WithArgs(url).
		WillReturnRows(pgxmock.NewRows(linkColumnNames).AddRow(uuid.New(), url, StatusAvailable, time.Now(), time.Now()))

	assert.ErrorIs(t, pool.Release(context.Background(), nil, url), ErrLinkNotInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertSkipsExistingURL(t *testing.T) {
	mock, repo := newMockRepo(t)
	ctx := context.Background()
	now := time.Date(2023, 6, 18, 9, 0, 0, 0, time.UTC)
	link := New(uuid.New(), "https://meet.example.com/a", now)

	mock.ExpectExec(`ON CONFLICT \(url\) DO NOTHING`).
		WithArgs(link.ID(), link.URL(), StatusAvailable, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`ON CONFLICT \(url\) DO NOTHING`).
		WithArgs(link.ID(), link.URL(), StatusAvailable, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := repo.Insert(ctx, nil, link)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Insert(ctx, nil, link)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}
