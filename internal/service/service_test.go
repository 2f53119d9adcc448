package service

import (
	"context"
	"fmt"
	"io"
	"testing"

	"eventmarket/internal/client"
	"eventmarket/internal/config"
	"eventmarket/internal/database"
	"eventmarket/internal/events"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

func setupClient(t *testing.T) *client.Client {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)

	c := client.New(db, config.ClientConfig{}, events.NewEventBus(), &logger)
	t.Cleanup(func() { c.Close() })
	return c
}

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func createUser(t *testing.T, c *client.Client, n int) *models.User {
	t.Helper()
	u, err := c.User.Create(context.Background(), query.Data{
		"name":     fmt.Sprintf("User %d", n),
		"email":    fmt.Sprintf("user%d@example.com", n),
		"phone":    fmt.Sprintf("+2000000%04d", n),
		"password": "h",
	})
	require.NoError(t, err)
	return u
}

func createVendor(t *testing.T, c *client.Client, n int) *models.Vendor {
	t.Helper()
	u := createUser(t, c, n)
	v, err := c.Vendor.Create(context.Background(), query.Data{"userId": u.ID, "companyName": fmt.Sprintf("Vendor %d", n)})
	require.NoError(t, err)
	return v
}

func createItem(t *testing.T, c *client.Client, vendorID string, extra query.Data) *models.Item {
	t.Helper()
	data := query.Data{"vendorId": vendorID, "title": "Item", "description": "d", "category": "RENTALS"}
	for k, v := range extra {
		data[k] = v
	}
	it, err := c.Item.Create(context.Background(), data)
	require.NoError(t, err)
	return it
}
