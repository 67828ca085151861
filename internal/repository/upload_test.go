package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/expiredrop/internal/model"
	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

type fakeDB struct {
	execSQL  string
	execArgs []any
	execErr  error
	row      pgx.Row
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL, f.execArgs = sql, args
	return pgconn.NewCommandTag("UPDATE 1"), f.execErr
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row { return f.row }

type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func TestCreate(t *testing.T) {
	db := &fakeDB{}
	repo := NewUploadRepository(db)
	id := uploadid.New(uploadid.Unix(time.Now().Add(time.Hour)))
	u := model.NewUpload(id, "notes.txt", 42)

	require.NoError(t, repo.Create(context.Background(), u))
	assert.Contains(t, db.execSQL, "INSERT INTO uploads")
	require.Len(t, db.execArgs, 6)
	assert.Equal(t, id.String(), db.execArgs[0])
	assert.Equal(t, "notes.txt", db.execArgs[1])
	assert.Equal(t, int64(42), db.execArgs[2])

	db.execErr = errors.New("conn reset")
	assert.ErrorContains(t, repo.Create(context.Background(), u), "insert upload")
}

func TestGet(t *testing.T) {
	id := uploadid.New(1_000)
	exp := id.ExpiresAt()
	db := &fakeDB{row: rowFunc(func(dest ...any) error {
		*dest[0].(*string) = "a.bin"
		*dest[1].(*int64) = 7
		*dest[2].(*string) = "application/octet-stream"
		*dest[3].(*time.Time) = exp
		*dest[4].(*time.Time) = exp.Add(-time.Hour)
		return nil
	})}

	u, err := NewUploadRepository(db).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, "a.bin", u.Name)
	assert.Equal(t, int64(7), u.Size)
	assert.Nil(t, u.ReclaimedAt)
}

func TestGet_NotFound(t *testing.T) {
	db := &fakeDB{row: rowFunc(func(...any) error { return pgx.ErrNoRows })}
	_, err := NewUploadRepository(db).Get(context.Background(), uploadid.New(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkReclaimed(t *testing.T) {
	db := &fakeDB{}
	id := uploadid.New(5)
	at := time.Date(2031, 5, 6, 7, 8, 9, 0, time.FixedZone("x", 3600))

	require.NoError(t, NewUploadRepository(db).MarkReclaimed(context.Background(), id, at))
	assert.Contains(t, db.execSQL, "reclaimed_at IS NULL")
	assert.Equal(t, []any{at.UTC(), id.String()}, db.execArgs)
}
