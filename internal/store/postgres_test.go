package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ivrmap/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresLoadMissingSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM sessions WHERE key = \$1`).
		WithArgs("15550000000").
		WillReturnError(pgx.ErrNoRows)

	sess, err := s.LoadSession(context.Background(), "15550000000")
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	in := testSession("+15551234567")
	data, err := json.Marshal(in)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT data FROM sessions WHERE key = \$1`).
		WithArgs("15551234567").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(data))

	out, err := s.LoadSession(context.Background(), "15551234567")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "+15551234567", out.Identity)
	require.Len(t, out.Calls, 1)
	assert.Equal(t, "call-1", out.Calls[0].CallID)
	require.NotNil(t, out.LastRoot)
	assert.Equal(t, model.RootID, out.LastRoot.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadSessionCorruptData(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM sessions WHERE key = \$1`).
		WithArgs("15551234567").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte("{not json")))

	_, err := s.LoadSession(context.Background(), "15551234567")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal session")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	sess := testSession("+15551234567")

	mock.ExpectExec(`(?s)INSERT INTO sessions.+ON CONFLICT \(key\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), "15551234567", "+15551234567", pgxmock.AnyArg(),
			1, sess.TotalCost, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveSession(context.Background(), sess))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveRejectsEmptyIdentity(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.SaveSession(context.Background(), &model.Session{})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestPostgresListSessions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT key, identity, call_count, total_cost, updated_at`).
		WillReturnRows(pgxmock.NewRows([]string{"key", "identity", "call_count", "total_cost", "updated_at"}).
			AddRow("15550000002", "+15550000002", 3, 0.41, now).
			AddRow("15550000001", "+15550000001", 1, 0.09, now.Add(-time.Hour)))

	list, err := s.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "15550000002", list[0].Key)
	assert.Equal(t, 3, list[0].CallCount)
	assert.InDelta(t, 0.41, list[0].TotalCost, 0.0001)
	assert.Equal(t, "15550000001", list[1].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteSession(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM sessions WHERE key = \$1`).
		WithArgs("15551234567").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteSession(context.Background(), "15551234567"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteSessionNotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM sessions WHERE key = \$1`).
		WithArgs("15559999999").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteSession(context.Background(), "15559999999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMigrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sessions`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
