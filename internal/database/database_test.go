package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/models"
	"eventmarket/internal/schema"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
	assert.False(t, db.InMemory())
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
	assert.True(t, db.InMemory())
}

func TestNewDB_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "twice.db")
	logger := zerolog.Nop()

	first, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

// Every schema field must have a column, and every column a field.
func TestTablesMatchSchema(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, m := range schema.Marketplace.Models() {
		rows, err := db.QueryContext(ctx, "SELECT name, \"notnull\" FROM pragma_table_info(?)", m.Table)
		require.NoError(t, err)
		columns := map[string]bool{}
		for rows.Next() {
			var col string
			var notNull bool
			require.NoError(t, rows.Scan(&col, &notNull))
			columns[col] = notNull
		}
		require.NoError(t, rows.Err())
		rows.Close()

		require.Len(t, columns, len(m.Fields), m.Table)
		for _, f := range m.Fields {
			notNull, ok := columns[f.Column]
			require.True(t, ok, "%s.%s", m.Table, f.Column)
			if f.Name != "id" {
				assert.Equal(t, !f.Nullable, notNull, "%s.%s nullability", m.Table, f.Column)
			}
		}
	}
}

func insertUser(t *testing.T, db *DB, id, email string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO users (id, name, email, phone, password, role, verified, created_at, updated_at)
        VALUES (?, 'n', ?, ?, 'p', 'USER', 0, ?, ?)`, id, email, "phone-"+id, now, now)
	require.NoError(t, err)
}

func TestClassify_Constraints(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()
	insertUser(t, db, "u1", "a@example.com")

	t.Run("unique is conflict", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO users (id, name, email, phone, password, created_at, updated_at)
            VALUES ('u2', 'n', 'a@example.com', 'other', 'p', ?, ?)`, now, now)
		require.Error(t, err)
		classified := Classify(err, ActionWrite)
		assert.True(t, apperrors.IsConflict(classified))
		assert.Contains(t, classified.Error(), "users.email")
	})

	t.Run("missing reference on write is validation", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO vendors (id, user_id, created_at, updated_at) VALUES ('v1', 'ghost', ?, ?)`, now, now)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(Classify(err, ActionWrite)))
	})

	t.Run("restricted delete is conflict", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO vendors (id, user_id, created_at, updated_at) VALUES ('v1', 'u1', ?, ?)`, now, now)
		require.NoError(t, err)
		_, err = db.Exec(`DELETE FROM users WHERE id = 'u1'`)
		require.Error(t, err)
		classified := Classify(err, ActionDelete)
		assert.True(t, apperrors.IsConflict(classified), "got %v", classified)
		assert.Contains(t, classified.Error(), "still referenced")
	})

	t.Run("enum check is validation", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO users (id, name, email, phone, password, role, created_at, updated_at)
            VALUES ('u3', 'n', 'c@example.com', 'p3', 'p', 'ROOT', ?, ?)`, now, now)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(Classify(err, ActionWrite)))
	})

	t.Run("review with two targets is validation", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO category_types (id, name, created_at, updated_at) VALUES ('c1', 'Sound', ?, ?)`, now, now)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO items (id, vendor_id, title, description, category, created_at, updated_at)
            VALUES ('i1', 'v1', 't', 'd', ?, ?, ?)`, string(models.CategoryRentals), now, now)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO reviews (id, comment, rating, reviewer, user_id, item_id, vendor_id, created_at, updated_at)
            VALUES ('r1', 'c', 5, 'r', 'u1', 'i1', 'v1', ?, ?)`, now, now)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(Classify(err, ActionWrite)))
	})
}

func TestClassify_Passthrough(t *testing.T) {
	assert.NoError(t, Classify(nil, ActionRead))

	nf := apperrors.NotFound("missing")
	assert.Same(t, nf, Classify(nf, ActionRead))

	assert.True(t, apperrors.IsTimeout(Classify(context.DeadlineExceeded, ActionWrite)))
	assert.Equal(t, apperrors.KindEngine, apperrors.KindOf(Classify(os.ErrClosed, ActionRead)))
}

func TestDeletePolicies(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now().UTC()
	insertUser(t, db, "u1", "a@example.com")

	mustExec := func(query string, args ...any) {
		t.Helper()
		_, err := db.Exec(query, args...)
		require.NoError(t, err)
	}
	mustExec(`INSERT INTO vendors (id, user_id, created_at, updated_at) VALUES ('v1', 'u1', ?, ?)`, now, now)
	mustExec(`INSERT INTO category_types (id, name, created_at, updated_at) VALUES ('c1', 'Sound', ?, ?)`, now, now)
	mustExec(`INSERT INTO items (id, vendor_id, category_id, title, description, category, created_at, updated_at)
        VALUES ('i1', 'v1', 'c1', 't', 'd', 'RENTALS', ?, ?)`, now, now)
	mustExec(`INSERT INTO saved_items (id, user_id, item_id, created_at, updated_at) VALUES ('s1', 'u1', 'i1', ?, ?)`, now, now)

	// SET NULL on the optional category.
	mustExec(`DELETE FROM category_types WHERE id = 'c1'`)
	var category *string
	require.NoError(t, db.QueryRow(`SELECT category_id FROM items WHERE id = 'i1'`).Scan(&category))
	assert.Nil(t, category)

	// CASCADE from the item to saved entries.
	mustExec(`DELETE FROM items WHERE id = 'i1'`)
	var saved int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM saved_items`).Scan(&saved))
	assert.Zero(t, saved)
}
