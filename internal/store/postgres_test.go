package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresFromPool(mock), mock
}

func TestPostgresGetOrCreateState(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO states \(name\) VALUES \(\$1\)`).
		WithArgs("IL").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	got, err := st.GetOrCreateState(context.Background(), "IL")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "IL", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetOrCreateCity(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO cities \(name, state_id\)`).
		WithArgs("springfield", int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	got, err := st.GetOrCreateCity(context.Background(), "springfield", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	assert.Equal(t, int64(7), got.StateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSourceFile(t *testing.T) {
	t.Parallel()

	t.Run("unknown file returns nil", func(t *testing.T) {
		t.Parallel()
		st, mock := newMockStore(t)

		mock.ExpectQuery(`SELECT id, hash, size`).
			WithArgs(int64(1), "a.csv").
			WillReturnError(errNoRows())

		sf, err := st.GetSourceFile(context.Background(), 1, "a.csv")
		require.NoError(t, err)
		assert.Nil(t, sf)
	})

	t.Run("known file populates metadata", func(t *testing.T) {
		t.Parallel()
		st, mock := newMockStore(t)

		mod := time.Now().UTC()
		ingested := mod.Add(-time.Hour)
		catID := int64(4)
		mock.ExpectQuery(`SELECT id, hash, size`).
			WithArgs(int64(1), "a.csv").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "hash", "size", "modified_time", "row_count",
				"last_ingested_at", "category_id", "state_id", "city_id",
			}).AddRow(int64(9), "abc", int64(100), mod, 5, &ingested, &catID, (*int64)(nil), (*int64)(nil)))

		sf, err := st.GetSourceFile(context.Background(), 1, "a.csv")
		require.NoError(t, err)
		require.NotNil(t, sf)
		assert.Equal(t, int64(9), sf.ID)
		assert.Equal(t, "abc", sf.Hash)
		require.NotNil(t, sf.LastIngestedAt)
		require.NotNil(t, sf.CategoryID)
		assert.Equal(t, int64(4), *sf.CategoryID)
		assert.Nil(t, sf.StateID)
	})
}

func TestPostgresSaveSourceFileUpdate(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectExec(`(?s)UPDATE source_files\s+SET hash = \$1.*last_ingested_at = NULL`).
		WithArgs("def", int64(200), pgxmock.AnyArg(),
			(*int64)(nil), (*int64)(nil), (*int64)(nil), int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	sf := &model.SourceFile{ID: 9, Path: "a.csv", Hash: "def", Size: 200, ModifiedTime: time.Now()}
	require.NoError(t, st.SaveSourceFile(context.Background(), sf))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFinishSourceFile(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE source_files SET row_count`).
		WithArgs(10, pgxmock.AnyArg(), int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, st.FinishSourceFile(context.Background(), 9, 10, time.Now()))

	mock.ExpectExec(`UPDATE source_files SET row_count`).
		WithArgs(10, pgxmock.AnyArg(), int64(999)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.Error(t, st.FinishSourceFile(context.Background(), 999, 10, time.Now()))
}

func TestPostgresFindLeadByEmail(t *testing.T) {
	t.Parallel()

	t.Run("no match returns nil", func(t *testing.T) {
		t.Parallel()
		st, mock := newMockStore(t)

		mock.ExpectQuery(`WHERE lower\(l.email\) = lower\(\$1\)`).
			WithArgs("a@b.com").
			WillReturnError(errNoRows())

		lead, err := st.FindLeadByEmail(context.Background(), "a@b.com")
		require.NoError(t, err)
		assert.Nil(t, lead)
	})

	t.Run("match scans full row", func(t *testing.T) {
		t.Parallel()
		st, mock := newMockStore(t)

		now := time.Now().UTC()
		mock.ExpectQuery(`WHERE lower\(l.email\) = lower\(\$1\)`).
			WithArgs("a@b.com").
			WillReturnRows(leadRows().AddRow(
				int64(5), "Acme", "b.com", "a@b.com", "", "", (*int64)(nil), (*int64)(nil), (*int64)(nil),
				"b.com", 70, []byte(`{"Reviews":"12"}`), (*int64)(nil), now, now, now,
			))

		lead, err := st.FindLeadByEmail(context.Background(), "a@b.com")
		require.NoError(t, err)
		require.NotNil(t, lead)
		assert.Equal(t, int64(5), lead.ID)
		assert.Equal(t, "12", lead.Extra["Reviews"])
	})
}

func TestPostgresCreateLead(t *testing.T) {
	t.Parallel()

	t.Run("insert returns id", func(t *testing.T) {
		t.Parallel()
		st, mock := newMockStore(t)

		mock.ExpectQuery(`INSERT INTO leads`).
			WithArgs(anyArgs(15)...).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

		lead := &model.Lead{BusinessName: "Acme", Email: "a@b.com"}
		require.NoError(t, st.CreateLead(context.Background(), lead))
		assert.Equal(t, int64(11), lead.ID)
	})

	t.Run("uniqueness violation classifies as conflict", func(t *testing.T) {
		t.Parallel()
		st, mock := newMockStore(t)

		mock.ExpectQuery(`INSERT INTO leads`).
			WithArgs(anyArgs(15)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uniq_lead_email_lower"})

		err := st.CreateLead(context.Background(), &model.Lead{BusinessName: "Acme", Email: "a@b.com"})
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("savepoint wraps insert inside a transaction", func(t *testing.T) {
		t.Parallel()
		st, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectBegin() // savepoint
		mock.ExpectQuery(`INSERT INTO leads`).
			WithArgs(anyArgs(15)...).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(12)))
		mock.ExpectCommit() // release savepoint
		mock.ExpectCommit()

		err := st.WithTx(context.Background(), func(tx Store) error {
			return tx.CreateLead(context.Background(), &model.Lead{BusinessName: "Acme"})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresUpdateLead(t *testing.T) {
	t.Parallel()
	st, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE leads SET business_name`).
		WithArgs(anyArgs(14)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	lead := &model.Lead{ID: 5, BusinessName: "Acme", QualityScore: 90}
	require.NoError(t, st.UpdateLead(context.Background(), lead))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsConflict(t *testing.T) {
	t.Parallel()

	assert.False(t, IsConflict(nil))
	assert.False(t, IsConflict(errors.New("boom")))
	assert.True(t, IsConflict(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsConflict(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsConflict(errors.New("constraint failed: UNIQUE constraint failed: leads.email")))
}

func leadRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "business_name", "website", "email", "phone", "address",
		"category_id", "state_id", "city_id", "domain", "quality_score",
		"extra", "source_file_id", "created_at", "updated_at", "last_seen_at",
	})
}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func errNoRows() error {
	return pgx.ErrNoRows
}
