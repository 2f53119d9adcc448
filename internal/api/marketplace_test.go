package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eventmarket/internal/client"
	"eventmarket/internal/config"
	"eventmarket/internal/events"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMarketplaceServer(t *testing.T, cfg config.APIConfig) (*httptest.Server, *client.Client) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	c := newTestClient(t)
	srv := NewHTTPServer(cfg, NewDispatcher(c, &logger), nil, nil, &logger)
	srv.MountMarketplace(NewMarketplace(c, events.NewEventBus(), 30, &logger))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, c
}

func send(t *testing.T, method, url, key, extra string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("x-api-key", key)
		req.Header.Set("x-api-extra", extra)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func seedUser(t *testing.T, c *client.Client, n int) *models.User {
	t.Helper()
	u, err := c.User.Create(context.Background(), query.Data{
		"name":     fmt.Sprintf("User %d", n),
		"email":    fmt.Sprintf("user%d@example.com", n),
		"phone":    fmt.Sprintf("+3000000%04d", n),
		"password": "h",
	})
	require.NoError(t, err)
	return u
}

func dataOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "body: %v", body)
	return data
}

func onboard(t *testing.T, ts *httptest.Server, c *client.Client, n int) string {
	t.Helper()
	owner := seedUser(t, c, n)
	resp, body := send(t, http.MethodPost, ts.URL+"/api/v1/vendors/onboard", "", "", map[string]any{
		"userId": owner.ID,
		"data":   map[string]any{"companyName": fmt.Sprintf("Vendor %d", n)},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", body)
	return dataOf(t, body)["id"].(string)
}

func TestMarketplace_Onboard(t *testing.T) {
	ts, c := newMarketplaceServer(t, config.APIConfig{})
	ctx := context.Background()

	vendorID := onboard(t, ts, c, 1)
	vendor, err := c.Vendor.FindUniqueOrThrow(ctx, query.ID(vendorID))
	require.NoError(t, err)
	user, err := c.User.FindUniqueOrThrow(ctx, query.ID(vendor.UserID))
	require.NoError(t, err)
	assert.Equal(t, models.RoleVendor, user.Role)

	other := seedUser(t, c, 2)
	resp, body := send(t, http.MethodPost, ts.URL+"/api/v1/vendors/onboard", "", "", map[string]any{
		"userId": other.ID,
		"data":   map[string]any{"companyName": "X", "userId": user.ID},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation", body["kind"])

	resp, _ = send(t, http.MethodPost, ts.URL+"/api/v1/vendors/onboard", "", "", map[string]any{
		"userId": "missing",
		"data":   map[string]any{"companyName": "Y"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = send(t, http.MethodPost, ts.URL+"/api/v1/vendors/onboard", "", "", map[string]any{"userId": other.ID, "extra": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMarketplace_Reviews(t *testing.T) {
	ts, c := newMarketplaceServer(t, config.APIConfig{})
	ctx := context.Background()

	vendorID := onboard(t, ts, c, 1)
	author := seedUser(t, c, 2)
	item, err := c.Item.Create(ctx, query.Data{"vendorId": vendorID, "title": "Tent", "description": "d", "category": "RENTALS"})
	require.NoError(t, err)

	review := func(rating int) string {
		resp, body := send(t, http.MethodPost, ts.URL+"/api/v1/reviews", "", "", map[string]any{"data": map[string]any{
			"comment": "ok", "rating": rating, "reviewer": "A", "userId": author.ID, "itemId": item.ID,
		}})
		require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", body)
		return dataOf(t, body)["id"].(string)
	}
	avgRating := func() float64 {
		it, err := c.Item.FindUniqueOrThrow(ctx, query.ID(item.ID))
		require.NoError(t, err)
		return it.AvgRating
	}

	first := review(4)
	review(2)
	assert.InDelta(t, 3.0, avgRating(), 1e-9)

	resp, _ := send(t, http.MethodDelete, ts.URL+"/api/v1/reviews/"+first, "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 2.0, avgRating(), 1e-9)

	resp, _ = send(t, http.MethodDelete, ts.URL+"/api/v1/reviews/"+first, "", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := send(t, http.MethodPost, ts.URL+"/api/v1/reviews", "", "", map[string]any{"data": map[string]any{
		"comment": "bad", "rating": 9, "reviewer": "A", "userId": author.ID, "itemId": item.ID,
	}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Validation", body["kind"])
}

func TestMarketplace_BookingFlow(t *testing.T) {
	ts, c := newMarketplaceServer(t, config.APIConfig{})
	ctx := context.Background()

	vendorID := onboard(t, ts, c, 1)
	guest := seedUser(t, c, 2)
	item, err := c.Item.Create(ctx, query.Data{
		"vendorId": vendorID, "title": "Tent", "description": "d", "category": "RENTALS",
		"price": 100.0, "pricingUnit": "DAY", "bookingType": "REQUEST",
	})
	require.NoError(t, err)

	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	resp, body := send(t, http.MethodPost, ts.URL+"/api/v1/bookings", "", "", map[string]any{
		"userId": guest.ID, "itemId": item.ID, "startDate": start, "endDate": start.Add(24 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %v", body)
	booking := dataOf(t, body)
	bookingID := booking["id"].(string)
	assert.Equal(t, "PENDING", booking["status"])
	assert.Equal(t, 100.0, booking["totalPrice"])

	bookingURL := ts.URL + "/api/v1/bookings/" + bookingID

	resp, _ = send(t, http.MethodPost, bookingURL+"/pay", "", "", map[string]any{"amount": 100})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = send(t, http.MethodPost, bookingURL+"/approve", "", "", map[string]any{"vendorId": vendorID})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)
	assert.Equal(t, "APPROVED", dataOf(t, body)["status"])

	resp, body = send(t, http.MethodPost, bookingURL+"/pay", "", "", map[string]any{"amount": 60, "method": "CARD"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)
	assert.Equal(t, "PENDING", dataOf(t, body)["status"])

	resp, body = send(t, http.MethodPost, bookingURL+"/pay", "", "", map[string]any{"amount": 40})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)
	payment := dataOf(t, body)
	assert.Equal(t, "COMPLETED", payment["status"])
	assert.Equal(t, 100.0, payment["paidAmount"])

	resp, body = send(t, http.MethodPost, bookingURL+"/complete", "", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)
	assert.Equal(t, "COMPLETED", dataOf(t, body)["status"])

	resp, _ = send(t, http.MethodPost, ts.URL+"/api/v1/bookings/missing/approve", "", "", map[string]any{"vendorId": vendorID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = send(t, http.MethodPost, ts.URL+"/api/v1/bookings", "", "", map[string]any{
		"userId": guest.ID, "itemId": item.ID, "startDate": start.AddDate(1, 0, 0), "endDate": start.AddDate(1, 0, 1),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMarketplace_SavedItems(t *testing.T) {
	ts, c := newMarketplaceServer(t, config.APIConfig{})
	ctx := context.Background()

	vendorID := onboard(t, ts, c, 1)
	user := seedUser(t, c, 2)
	item, err := c.Item.Create(ctx, query.Data{"vendorId": vendorID, "title": "Tent", "description": "d", "category": "RENTALS"})
	require.NoError(t, err)

	toggle := func() bool {
		resp, body := send(t, http.MethodPost, ts.URL+"/api/v1/saved-items/toggle", "", "", map[string]any{"userId": user.ID, "itemId": item.ID})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)
		return dataOf(t, body)["saved"].(bool)
	}
	list := func() []any {
		resp, body := send(t, http.MethodGet, ts.URL+"/api/v1/users/"+user.ID+"/saved-items", "", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		items, _ := body["data"].([]any)
		return items
	}

	assert.True(t, toggle())
	saved := list()
	require.Len(t, saved, 1)
	entry := saved[0].(map[string]any)
	assert.Equal(t, "Tent", entry["item"].(map[string]any)["title"])

	assert.False(t, toggle())
	assert.Empty(t, list())
}

func TestMarketplace_Auth(t *testing.T) {
	ts, c := newMarketplaceServer(t, authConfig())
	user := seedUser(t, c, 1)
	toggle := map[string]any{"userId": user.ID, "itemId": "x"}

	resp, _ := send(t, http.MethodPost, ts.URL+"/api/v1/saved-items/toggle", "", "", toggle)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = send(t, http.MethodPost, ts.URL+"/api/v1/saved-items/toggle", "reader-key", "reader-extra", toggle)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = send(t, http.MethodGet, ts.URL+"/api/v1/users/"+user.ID+"/saved-items", "reader-key", "reader-extra", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = send(t, http.MethodGet, ts.URL+"/api/v1/bookings", "admin-key", "admin-extra", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestEndpointLabel_Marketplace(t *testing.T) {
	assert.Equal(t, "/api/v1/bookings", endpointLabel("/api/v1/bookings/abc/pay"))
	assert.Equal(t, "/api/v1/reviews", endpointLabel("/api/v1/reviews"))
	assert.Equal(t, "/api/v1/users", endpointLabel("/api/v1/users/abc/saved-items"))
	assert.Equal(t, "other", endpointLabel("/api/v1/unknown/abc"))
	assert.Equal(t, "other", endpointLabel("/elsewhere"))
}
