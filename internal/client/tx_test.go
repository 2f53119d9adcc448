package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/config"
	"eventmarket/internal/events"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countUsers(t *testing.T, c *Client) int64 {
	t.Helper()
	n, err := c.User.Count(context.Background(), query.CountArgs{})
	require.NoError(t, err)
	return n.All
}

func TestTransaction_AllOrNothing(t *testing.T) {
	c, bus := setupClient(t, config.ClientConfig{})
	ctx := context.Background()

	var published []string
	bus.Subscribe(events.EventRecordCreated, func(e *events.Event) error {
		published = append(published, e.Type)
		return nil
	})

	boom := errors.New("boom")
	err := c.Transaction(ctx, func(ctx context.Context, tx *Client) error {
		mustUser(t, tx, 1)
		mustUser(t, tx, 2)
		assert.EqualValues(t, 2, countUsers(t, tx))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, countUsers(t, c))
	assert.Empty(t, published)

	err = c.Transaction(ctx, func(ctx context.Context, tx *Client) error {
		mustUser(t, tx, 1)
		assert.Empty(t, published, "events wait for commit")
		mustUser(t, tx, 2)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, countUsers(t, c))
	assert.Len(t, published, 2)
}

func TestTransaction_FailedWriteRollsBack(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	existing := mustUser(t, c, 1)

	err := c.Transaction(ctx, func(ctx context.Context, tx *Client) error {
		u := mustUser(t, tx, 2)
		if _, err := tx.Vendor.Create(ctx, query.Data{"userId": u.ID, "companyName": "New"}); err != nil {
			return err
		}
		_, err := tx.User.Update(ctx, query.ID(u.ID), query.Update{query.Set("email", existing.Email)})
		return err
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	assert.EqualValues(t, 1, countUsers(t, c))
	n, err := c.Vendor.Count(ctx, query.CountArgs{})
	require.NoError(t, err)
	assert.Zero(t, n.All)
}

func TestTransaction_Timeout(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	err := c.Transaction(ctx, func(ctx context.Context, tx *Client) error {
		mustUser(t, tx, 1)
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(50*time.Millisecond))
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err), "got %v", err)
	assert.Zero(t, countUsers(t, c))

	err = c.Transaction(ctx, func(ctx context.Context, tx *Client) error {
		mustUser(t, tx, 2)
		time.Sleep(80 * time.Millisecond)
		return nil
	}, WithTimeout(20*time.Millisecond))
	assert.True(t, apperrors.IsTimeout(err), "got %v", err)

	// The rolled back transactions leave the database usable.
	assert.Zero(t, countUsers(t, c))
	mustUser(t, c, 3)
	assert.Equal(t, int64(1), countUsers(t, c))
}

func TestWrite_CancelledContextKeepsData(t *testing.T) {
	c := newClient(t)
	mustUser(t, c, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.User.Create(ctx, query.Data{"name": "Late", "email": "late@example.com", "phone": "+100"})
	require.Error(t, err)

	assert.Equal(t, int64(1), countUsers(t, c))
}

func TestTransaction_MaxWait(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	// The in-memory database has a single connection; holding it starves the
	// transaction.
	conn, err := c.db.Conn(ctx)
	require.NoError(t, err)

	ran := false
	err = c.Transaction(ctx, func(ctx context.Context, tx *Client) error {
		ran = true
		return nil
	}, WithMaxWait(30*time.Millisecond))
	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err), "got %v", err)
	assert.False(t, ran)

	require.NoError(t, conn.Close())
	require.NoError(t, c.Transaction(ctx, func(ctx context.Context, tx *Client) error {
		ran = true
		return nil
	}, WithMaxWait(time.Second)))
	assert.True(t, ran)
}

func TestTransaction_Nested(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	err := c.Transaction(ctx, func(ctx context.Context, tx *Client) error {
		assert.True(t, tx.InTransaction())
		assert.Error(t, tx.Close())
		mustUser(t, tx, 1)
		inner := tx.Transaction(ctx, func(ctx context.Context, nested *Client) error {
			assert.Same(t, tx, nested)
			mustUser(t, nested, 2)
			return nil
		})
		require.NoError(t, inner)
		return errors.New("abort outer")
	})
	require.Error(t, err)
	assert.Zero(t, countUsers(t, c))
	assert.False(t, c.InTransaction())
}

func TestBatch(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	ops := []Op{
		func(ctx context.Context, tx *Client) (any, error) {
			return tx.CategoryType.Create(ctx, query.Data{"name": "Sound"})
		},
		func(ctx context.Context, tx *Client) (any, error) {
			return tx.CategoryType.Count(ctx, query.CountArgs{})
		},
		func(ctx context.Context, tx *Client) (any, error) {
			return tx.CategoryType.UpdateMany(ctx, nil, query.Update{query.Set("name", "Audio")})
		},
	}
	results, err := c.Batch(ctx, ops)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Sound", results[0].(*models.CategoryType).Name)
	assert.EqualValues(t, 1, results[1].(query.CountResult).All)
	assert.EqualValues(t, 1, results[2].(query.BatchResult).Count)

	failing := []Op{
		func(ctx context.Context, tx *Client) (any, error) {
			return tx.CategoryType.Create(ctx, query.Data{"name": "Light"})
		},
		func(ctx context.Context, tx *Client) (any, error) {
			return tx.CategoryType.Create(ctx, query.Data{"name": "Audio"})
		},
	}
	results, err = c.Batch(ctx, failing)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Nil(t, results)

	n, err := c.CategoryType.Count(ctx, query.CountArgs{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n.All)
}
