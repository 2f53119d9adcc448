package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/config"
	"eventmarket/internal/database"
	"eventmarket/internal/events"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T, cfg config.ClientConfig) (*Client, *events.EventBus) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)

	bus := events.NewEventBus()
	c := New(db, cfg, bus, &logger)
	t.Cleanup(func() { c.Close() })
	return c, bus
}

func newClient(t *testing.T) *Client {
	t.Helper()
	c, _ := setupClient(t, config.ClientConfig{})
	return c
}

func mustUser(t *testing.T, c *Client, n int) *models.User {
	t.Helper()
	u, err := c.User.Create(context.Background(), query.Data{
		"name":     fmt.Sprintf("User %d", n),
		"email":    fmt.Sprintf("user%d@example.com", n),
		"phone":    fmt.Sprintf("+1000000%04d", n),
		"password": "h",
	})
	require.NoError(t, err)
	return u
}

func mustVendor(t *testing.T, c *Client, userID, company string) *models.Vendor {
	t.Helper()
	v, err := c.Vendor.Create(context.Background(), query.Data{"userId": userID, "companyName": company})
	require.NoError(t, err)
	return v
}

func mustItem(t *testing.T, c *Client, vendorID, title string, extra query.Data) *models.Item {
	t.Helper()
	data := query.Data{
		"vendorId":    vendorID,
		"title":       title,
		"description": "d",
		"category":    "RENTALS",
	}
	for k, v := range extra {
		data[k] = v
	}
	it, err := c.Item.Create(context.Background(), data)
	require.NoError(t, err)
	return it
}

func TestScenario(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	u1, err := c.User.Create(ctx, query.Data{
		"email": "a@x.com", "phone": "+10000000001", "name": "A", "password": "h", "role": "USER",
	})
	require.NoError(t, err)
	require.NotEmpty(t, u1.ID)

	_, err = c.User.Create(ctx, query.Data{
		"email": "a@x.com", "phone": "+10000000002", "name": "B", "password": "h",
	})
	assert.True(t, apperrors.IsConflict(err), "got %v", err)

	v1, err := c.Vendor.Create(ctx, query.Data{"userId": u1.ID, "companyName": "Acme"})
	require.NoError(t, err)
	require.NotNil(t, v1.CompanyName)
	assert.Equal(t, "Acme", *v1.CompanyName)

	_, err = c.Vendor.Create(ctx, query.Data{"userId": u1.ID})
	assert.True(t, apperrors.IsConflict(err), "got %v", err)

	i1, err := c.Item.Create(ctx, query.Data{
		"vendorId": v1.ID, "title": "Drill", "category": "RENTALS", "bookingType": "INSTANT", "description": "d",
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, i1.AvgRating)
	assert.Equal(t, models.BookingTypeInstant, i1.BookingType)
	assert.True(t, i1.IsAvailable)
	assert.Equal(t, models.StringList{}, i1.Images)

	saved, err := c.SavedItem.Create(ctx, query.Data{"userId": u1.ID, "itemId": i1.ID})
	require.NoError(t, err)

	_, err = c.SavedItem.Create(ctx, query.Data{"userId": u1.ID, "itemId": i1.ID})
	assert.True(t, apperrors.IsConflict(err), "got %v", err)

	again, err := c.SavedItem.FindUniqueOrThrow(ctx, query.Unique{"userId": u1.ID, "itemId": i1.ID})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)
	assert.True(t, saved.UpdatedAt.Equal(again.UpdatedAt))
}

func TestUniqueness_UpdateConflictLeavesRow(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	a := mustUser(t, c, 1)
	b := mustUser(t, c, 2)

	_, err := c.User.Update(ctx, query.ID(b.ID), query.SetAll(query.Data{"email": a.Email}))
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	_, err = c.User.Update(ctx, query.ID(b.ID), query.Update{query.Set("phone", a.Phone)})
	assert.True(t, apperrors.IsConflict(err))

	got, err := c.User.FindUniqueOrThrow(ctx, query.ID(b.ID))
	require.NoError(t, err)
	assert.Equal(t, b.Email, got.Email)
	assert.Equal(t, b.Phone, got.Phone)
}

func TestBooleanIdentities(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		mustUser(t, c, i)
	}

	all, err := c.User.FindMany(ctx, query.FindArgs{Where: query.And()})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := c.User.FindMany(ctx, query.FindArgs{Where: query.Or()})
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := c.User.Count(ctx, query.CountArgs{Where: query.And()})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n.All)

	n, err = c.User.Count(ctx, query.CountArgs{Where: query.Or()})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n.All)

	decoded, err := c.Decoder().Where(models.ModelUser, []byte(`{"AND": []}`))
	require.NoError(t, err)
	all, err = c.User.FindMany(ctx, query.FindArgs{Where: decoded})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	decoded, err = c.Decoder().Where(models.ModelUser, []byte(`{"OR": []}`))
	require.NoError(t, err)
	none, err = c.User.FindMany(ctx, query.FindArgs{Where: decoded})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNotFoundOnUniqueMiss(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	u, err := c.User.FindUnique(ctx, query.Unique{"email": "nobody@example.com"})
	assert.NoError(t, err)
	assert.Nil(t, u)

	_, err = c.User.FindUniqueOrThrow(ctx, query.Unique{"email": "nobody@example.com"})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "User.findUniqueOrThrow")

	_, err = c.User.FindFirstOrThrow(ctx, query.FindArgs{Where: query.Equals("name", "ghost")})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = c.User.Update(ctx, query.ID("missing"), query.Update{query.Set("name", "x")})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = c.User.Delete(ctx, query.ID("missing"))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUniqueSelectorValidation(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.User.FindUnique(ctx, query.Unique{"name": "A"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.User.FindUnique(ctx, query.Unique{})
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.SavedItem.FindUnique(ctx, query.Unique{"userId": "u"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestGroupByValidationRunsNoQuery(t *testing.T) {
	c, bus := setupClient(t, config.ClientConfig{Log: []string{"query"}, LogEmit: "event"})
	ctx := context.Background()

	var statements atomic.Int32
	bus.Subscribe(events.EventLog, func(*events.Event) error {
		statements.Add(1)
		return nil
	})

	cases := []query.GroupByArgs{
		{By: []string{"category"}, OrderBy: []query.Order{query.Asc("title")}},
		{By: []string{"category", "vendorId"}, OrderBy: []query.Order{query.Desc("price")}},
		{By: []string{"category"}, Having: query.Equals("title", "x")},
		{By: []string{"category"}, Take: 2},
	}
	for i, args := range cases {
		_, err := c.Item.GroupBy(ctx, args)
		require.Error(t, err, "case %d", i)
		assert.True(t, apperrors.IsValidation(err), "case %d: %v", i, err)
	}
	assert.Zero(t, statements.Load())

	_, err := c.Item.GroupBy(ctx, query.GroupByArgs{By: []string{"category"}, Aggregates: query.Aggregates{Count: []string{"_all"}}})
	require.NoError(t, err)
	assert.Positive(t, statements.Load())
}

func TestCreateManyCountRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	mustUser(t, c, 100)

	before, err := c.CategoryType.Count(ctx, query.CountArgs{})
	require.NoError(t, err)

	const n = 5
	data := make([]query.Data, n)
	for i := range data {
		data[i] = query.Data{"name": fmt.Sprintf("Category %d", i)}
	}
	res, err := c.CategoryType.CreateMany(ctx, query.CreateManyArgs{Data: data})
	require.NoError(t, err)
	assert.EqualValues(t, n, res.Count)

	after, err := c.CategoryType.Count(ctx, query.CountArgs{})
	require.NoError(t, err)
	assert.Equal(t, before.All+n, after.All)
}

func TestCreateMany_AllOrNothing(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.CategoryType.CreateMany(ctx, query.CreateManyArgs{Data: []query.Data{
		{"name": "Sound"}, {"name": "Light"}, {"name": "Sound"},
	}})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	n, err := c.CategoryType.Count(ctx, query.CountArgs{})
	require.NoError(t, err)
	assert.Zero(t, n.All)

	res, err := c.CategoryType.CreateMany(ctx, query.CreateManyArgs{
		Data:           []query.Data{{"name": "Sound"}, {"name": "Light"}, {"name": "Sound"}},
		SkipDuplicates: true,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Count)

	_, err = c.CategoryType.CreateMany(ctx, query.CreateManyArgs{Data: []query.Data{{"name": "Stage"}, {}}})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "row 1")
}

func TestOptionalRelationNullability(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	u := mustUser(t, c, 1)
	v := mustVendor(t, c, u.ID, "Acme")

	it := mustItem(t, c, v.ID, "Speaker", nil)
	assert.Nil(t, it.CategoryID)

	got, err := c.Item.FindUniqueOrThrow(ctx, query.ID(it.ID), query.Projection{Include: []string{"categoryType", "vendor"}})
	require.NoError(t, err)
	assert.Nil(t, got.CategoryType)
	require.NotNil(t, got.Vendor)
	assert.Equal(t, v.ID, got.Vendor.ID)

	_, err = c.Item.Create(ctx, query.Data{"title": "Orphan", "description": "d", "category": "RENTALS"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "vendor")

	_, err = c.Item.Create(ctx, query.Data{"vendorId": "missing", "title": "Ghost", "description": "d", "category": "RENTALS"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	n, err := c.Item.Count(ctx, query.CountArgs{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n.All)
}

func TestReviewTargeting(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()
	u := mustUser(t, c, 1)
	v := mustVendor(t, c, u.ID, "Acme")
	it := mustItem(t, c, v.ID, "Speaker", nil)

	base := query.Data{"comment": "ok", "rating": 4, "reviewer": "A", "userId": u.ID}
	with := func(extra query.Data) query.Data {
		out := query.Data{}
		for k, val := range base {
			out[k] = val
		}
		for k, val := range extra {
			out[k] = val
		}
		return out
	}

	_, err := c.Review.Create(ctx, with(query.Data{"itemId": it.ID, "vendorId": v.ID}))
	assert.True(t, apperrors.IsValidation(err), "got %v", err)

	onItem, err := c.Review.Create(ctx, with(query.Data{"itemId": it.ID}))
	require.NoError(t, err)
	assert.Equal(t, models.ReviewTarget{ItemID: it.ID}, onItem.Target())

	_, err = c.Review.Create(ctx, with(nil))
	assert.NoError(t, err)

	_, err = c.Review.Update(ctx, query.ID(onItem.ID), query.Update{query.Set("vendorId", v.ID)})
	assert.True(t, apperrors.IsValidation(err), "got %v", err)
}

func TestEnumValidation(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.User.Create(ctx, query.Data{
		"name": "A", "email": "a@example.com", "phone": "1", "password": "h", "role": "ROOT",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.User.Create(ctx, query.Data{
		"name": "A", "email": "a@example.com", "phone": "1", "password": "h", "createdAt": "2024-01-01",
	})
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.User.Create(ctx, query.Data{
		"name": "A", "email": "a@example.com", "phone": "1", "password": "h", "nickname": "x",
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestModelLookup(t *testing.T) {
	c := newClient(t)

	m, err := c.Model(models.ModelBooking)
	require.NoError(t, err)
	assert.Equal(t, models.ModelBooking, m.Name())
	assert.Same(t, m, c.Booking.Untyped())

	_, err = c.Model("Invoice")
	assert.True(t, apperrors.IsValidation(err))
}

func TestDefaultOmit(t *testing.T) {
	c, _ := setupClient(t, config.ClientConfig{Omit: map[string][]string{"user": {"password", "token"}}})
	ctx := context.Background()
	u := mustUser(t, c, 1)
	assert.Empty(t, u.Password)

	got, err := c.User.FindUniqueOrThrow(ctx, query.ID(u.ID))
	require.NoError(t, err)
	assert.Empty(t, got.Password)
	assert.Equal(t, u.Email, got.Email)

	withSecret, err := c.User.FindUniqueOrThrow(ctx, query.ID(u.ID), query.Projection{Select: []string{"email", "password"}})
	require.NoError(t, err)
	assert.Equal(t, "h", withSecret.Password)
	assert.Empty(t, withSecret.Name)
}

func TestRecordEvents(t *testing.T) {
	c, bus := setupClient(t, config.ClientConfig{})
	ctx := context.Background()

	var got []string
	for _, typ := range []string{events.EventRecordCreated, events.EventRecordUpdated, events.EventRecordDeleted, events.EventRecordsChanged} {
		bus.Subscribe(typ, func(e *events.Event) error {
			got = append(got, e.Type)
			return nil
		})
	}

	u := mustUser(t, c, 1)
	_, err := c.User.Update(ctx, query.ID(u.ID), query.Update{query.Set("city", "Oslo")})
	require.NoError(t, err)
	_, err = c.User.UpdateMany(ctx, query.Equals("city", "Oslo"), query.Update{query.Set("verified", true)})
	require.NoError(t, err)
	_, err = c.User.UpdateMany(ctx, query.Equals("city", "Bergen"), query.Update{query.Set("verified", true)})
	require.NoError(t, err)
	_, err = c.User.Delete(ctx, query.ID(u.ID))
	require.NoError(t, err)

	assert.Equal(t, []string{
		events.EventRecordCreated,
		events.EventRecordUpdated,
		events.EventRecordsChanged,
		events.EventRecordDeleted,
	}, got)
}
