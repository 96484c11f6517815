package peer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, seedResources, list)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(ctx, "concurrent", msgDefaultDescription)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 10)
	for i, res := range list {
		assert.Equal(t, int64(i+1), res.ID)
	}

	list[0].Name = "mutated"
	again, _ := store.List(ctx)
	assert.Equal(t, "Resource 1", again[0].Name)
}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSQLStore(sqlx.NewDb(db, "postgres")), mock
}

func TestSQLStore_Migrate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		count     int
		wantSeeds bool
	}{
		{name: "given empty table, then seeds two resources", count: 0, wantSeeds: true},
		{name: "given populated table, then leaves it alone", count: 5, wantSeeds: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, mock := newMockStore(t)

			mock.ExpectExec(`CREATE TABLE IF NOT EXISTS resources`).
				WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery(`SELECT COUNT\(\*\) FROM resources`).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.count))
			if tt.wantSeeds {
				for i, seed := range seedResources {
					mock.ExpectQuery(`INSERT INTO resources \(name, description\) VALUES \(\$1, \$2\) RETURNING id`).
						WithArgs(seed.Name, seed.Description).
						WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(i + 1))
				}
			}

			require.NoError(t, store.Migrate(context.Background()))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLStore_List(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, name, description FROM resources ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}).
			AddRow(1, "Resource 1", "Description of resource 1").
			AddRow(7, "Jane Doe", "No description"))

	got, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Resource{
		{ID: 1, Name: "Resource 1", Description: "Description of resource 1"},
		{ID: 7, Name: "Jane Doe", Description: "No description"},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Create(t *testing.T) {
	t.Parallel()

	t.Run("given insert succeeds, then returns the new id", func(t *testing.T) {
		t.Parallel()

		store, mock := newMockStore(t)
		mock.ExpectQuery(`INSERT INTO resources`).
			WithArgs("Jane Doe", "No description").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		got, err := store.Create(context.Background(), "Jane Doe", "No description")
		require.NoError(t, err)
		assert.Equal(t, Resource{ID: 42, Name: "Jane Doe", Description: "No description"}, got)
	})

	t.Run("given insert fails, then wraps the error", func(t *testing.T) {
		t.Parallel()

		dbErr := errors.New("relation \"resources\" does not exist")
		store, mock := newMockStore(t)
		mock.ExpectQuery(`INSERT INTO resources`).WillReturnError(dbErr)

		_, err := store.Create(context.Background(), "Jane Doe", "")
		require.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to create resource")
	})
}

func TestSQLOperation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  string
	}{
		{query: "select 1", want: "SELECT"},
		{query: "\n\tINSERT INTO resources VALUES (1)", want: "INSERT"},
		{query: "   ", want: "SQL"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sqlOperation(tt.query))
		})
	}
}
