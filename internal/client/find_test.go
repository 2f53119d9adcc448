package client

import (
	"context"
	"testing"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type catalog struct {
	user    *models.User
	vendor  *models.Vendor
	other   *models.Vendor
	items   map[string]*models.Item
	reviews []*models.Review
}

// seedCatalog creates two vendors and five items with distinct titles.
func seedCatalog(t *testing.T, c *Client) catalog {
	t.Helper()
	ctx := context.Background()
	u := mustUser(t, c, 1)
	u2 := mustUser(t, c, 2)
	cat := catalog{
		user:   u,
		vendor: mustVendor(t, c, u.ID, "Acme"),
		other:  mustVendor(t, c, u2.ID, "Globex"),
		items:  map[string]*models.Item{},
	}

	sound, err := c.CategoryType.Create(ctx, query.Data{"name": "Sound"})
	require.NoError(t, err)

	for _, it := range []struct {
		title  string
		vendor string
		data   query.Data
	}{
		{"Drill", cat.vendor.ID, query.Data{"price": 10.0, "images": []string{"a.png"}, "locations": []string{"Oslo", "Bergen"}}},
		{"Speaker", cat.vendor.ID, query.Data{"price": 25.5, "categoryId": sound.ID, "category": "SERVICES", "locations": []string{"Oslo"}}},
		{"Stage", cat.vendor.ID, query.Data{"price": 300.0, "category": "PACKAGES", "bookingType": "REQUEST"}},
		{"drum kit", cat.other.ID, query.Data{"price": 40.0, "categoryId": sound.ID, "locations": []string{"Bergen"}}},
		{"Tent", cat.other.ID, query.Data{"quantity": 3}},
	} {
		cat.items[it.title] = mustItem(t, c, it.vendor, it.title, it.data)
	}

	for _, r := range []struct {
		item   string
		rating float64
	}{{"Drill", 4}, {"Drill", 2}, {"Speaker", 5}} {
		rev, err := c.Review.Create(ctx, query.Data{
			"comment": "c", "rating": r.rating, "reviewer": "A", "userId": u.ID, "itemId": cat.items[r.item].ID,
		})
		require.NoError(t, err)
		cat.reviews = append(cat.reviews, rev)
	}
	return cat
}

func titles(items []models.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestFindMany_Filters(t *testing.T) {
	c := newClient(t)
	cat := seedCatalog(t, c)
	ctx := context.Background()
	byTitle := []query.Order{query.Asc("title")}

	cases := []struct {
		name  string
		where query.Predicate
		want  []string
	}{
		{"equals", query.Equals("title", "Drill"), []string{"Drill"}},
		{"enum", query.Equals("category", "PACKAGES"), []string{"Stage"}},
		{"in", query.In("title", "Drill", "Tent", "Nope"), []string{"Drill", "Tent"}},
		{"notIn", query.NotIn("category", "RENTALS"), []string{"Speaker", "Stage"}},
		{"range", query.And(query.Gte("price", 25.5), query.Lt("price", 300)), []string{"Speaker", "drum kit"}},
		{"contains", query.Contains("title", "rum"), []string{"drum kit"}},
		{"startsWith case sensitive", query.StartsWith("title", "d"), []string{"drum kit"}},
		{"startsWith insensitive", query.StartsWith("title", "d").Insensitive(), []string{"Drill", "drum kit"}},
		{"endsWith", query.EndsWith("title", "t"), []string{"Tent", "drum kit"}},
		{"isSet false", query.IsSet("price", false), []string{"Tent"}},
		{"isSet true", query.IsSet("categoryId", true), []string{"Speaker", "drum kit"}},
		{"null equals", query.Equals("categoryId", nil), []string{"Drill", "Stage", "Tent"}},
		{"has", query.Has("locations", "Oslo"), []string{"Drill", "Speaker"}},
		{"hasEvery", query.HasEvery("locations", "Oslo", "Bergen"), []string{"Drill"}},
		{"hasSome", query.HasSome("locations", "Bergen", "Paris"), []string{"Drill", "drum kit"}},
		{"isEmpty", query.IsEmpty("locations", true), []string{"Stage", "Tent"}},
		{"or", query.Or(query.Equals("title", "Tent"), query.Equals("title", "Stage")), []string{"Stage", "Tent"}},
		{"not", query.Not(query.Equals("vendorId", cat.vendor.ID)), []string{"Tent", "drum kit"}},
		{"relation is", query.Is("vendor", query.Equals("companyName", "Globex")), []string{"Tent", "drum kit"}},
		{"relation is null", query.Is("categoryType", nil), []string{"Drill", "Stage", "Tent"}},
		{"relation isNot", query.IsNot("categoryType", query.Equals("name", "Sound")), []string{"Drill", "Stage", "Tent"}},
		{"some", query.Some("reviews", query.Gte("rating", 5)), []string{"Speaker"}},
		{"every", query.Every("reviews", query.Gte("rating", 4)), []string{"Speaker", "Stage", "Tent", "drum kit"}},
		{"none", query.None("reviews", nil), []string{"Stage", "Tent", "drum kit"}},
		{"nested relation", query.Is("vendor", query.Is("user", query.Equals("email", cat.user.Email))), []string{"Drill", "Speaker", "Stage"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Item.FindMany(ctx, query.FindArgs{Where: tc.where, OrderBy: byTitle})
			require.NoError(t, err)
			assert.Equal(t, tc.want, titles(got))
		})
	}
}

func TestFindMany_EveryTreatsNullAsMismatch(t *testing.T) {
	c := newClient(t)
	cat := seedCatalog(t, c)

	// Globex owns the Tent, which has no price.
	got, err := c.Vendor.FindMany(context.Background(), query.FindArgs{
		Where: query.Every("items", query.Gt("price", 5)),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, cat.vendor.ID, got[0].ID)
}

func TestFindMany_InvalidFilters(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	for name, where := range map[string]query.Predicate{
		"unknown field":    query.Equals("colour", "red"),
		"bad enum":         query.Equals("category", "FOOD"),
		"list op scalar":   query.Has("title", "x"),
		"string op number": query.Contains("price", "1"),
		"unknown relation": query.Some("owners", nil),
		"some on to-one":   query.Some("vendor", nil),
	} {
		_, err := c.Item.FindMany(ctx, query.FindArgs{Where: where})
		assert.True(t, apperrors.IsValidation(err), "%s: %v", name, err)
	}
}

func TestFindMany_Paging(t *testing.T) {
	c := newClient(t)
	cat := seedCatalog(t, c)
	ctx := context.Background()
	byTitle := []query.Order{query.Asc("title")}

	got, err := c.Item.FindMany(ctx, query.FindArgs{OrderBy: byTitle, Take: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Drill", "Speaker"}, titles(got))

	got, err = c.Item.FindMany(ctx, query.FindArgs{OrderBy: byTitle, Skip: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tent", "drum kit"}, titles(got))

	cursor := query.ID(cat.items["Speaker"].ID)
	got, err = c.Item.FindMany(ctx, query.FindArgs{OrderBy: byTitle, Cursor: cursor, Take: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Speaker", "Stage"}, titles(got))

	got, err = c.Item.FindMany(ctx, query.FindArgs{OrderBy: byTitle, Cursor: cursor, Take: 2, Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stage", "Tent"}, titles(got))

	got, err = c.Item.FindMany(ctx, query.FindArgs{OrderBy: byTitle, Cursor: query.ID(cat.items["Tent"].ID), Take: -2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stage", "Tent"}, titles(got))

	got, err = c.Item.FindMany(ctx, query.FindArgs{OrderBy: []query.Order{query.Desc("title")}, Take: -2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Speaker", "Drill"}, titles(got), "backward take without cursor returns the tail")

	got, err = c.Item.FindMany(ctx, query.FindArgs{OrderBy: byTitle, Cursor: query.ID("missing"), Take: 2})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = c.Item.FindMany(ctx, query.FindArgs{OrderBy: []query.Order{query.Asc("price")}, Cursor: cursor})
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.Item.FindMany(ctx, query.FindArgs{Skip: -1})
	assert.True(t, apperrors.IsValidation(err))

	first, err := c.Item.FindFirst(ctx, query.FindArgs{OrderBy: []query.Order{query.Desc("price")}, Where: query.IsSet("price", true)})
	require.NoError(t, err)
	assert.Equal(t, "Stage", first.Title)

	last, err := c.Item.FindFirst(ctx, query.FindArgs{OrderBy: byTitle, Take: -1})
	require.NoError(t, err)
	assert.Equal(t, "drum kit", last.Title)
}

func TestFindMany_Distinct(t *testing.T) {
	c := newClient(t)
	seedCatalog(t, c)
	ctx := context.Background()

	got, err := c.Item.FindMany(ctx, query.FindArgs{
		Distinct: []string{"vendorId"},
		OrderBy:  []query.Order{query.Asc("title")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Drill", "Tent"}, titles(got))

	got, err = c.Item.FindMany(ctx, query.FindArgs{
		Distinct: []string{"category"},
		OrderBy:  []query.Order{query.Asc("title")},
		Skip:     1,
		Take:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Speaker"}, titles(got))

	_, err = c.Item.FindMany(ctx, query.FindArgs{Distinct: []string{"colour"}})
	assert.True(t, apperrors.IsValidation(err))
}

func TestProjection(t *testing.T) {
	c := newClient(t)
	cat := seedCatalog(t, c)
	ctx := context.Background()
	id := query.ID(cat.items["Drill"].ID)

	_, err := c.Item.FindUnique(ctx, id, query.Projection{Select: []string{"title"}, Include: []string{"vendor"}})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.Item.FindMany(ctx, query.FindArgs{Select: []string{"title"}, Omit: []string{"price"}})
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.Item.FindUnique(ctx, id, query.Projection{Select: []string{"vendor"}})
	assert.True(t, apperrors.IsValidation(err))

	_, err = c.Item.FindUnique(ctx, id, query.Projection{Include: []string{"owner"}})
	assert.True(t, apperrors.IsValidation(err))

	slim, err := c.Item.FindUnique(ctx, id, query.Projection{Select: []string{"title"}})
	require.NoError(t, err)
	assert.Equal(t, cat.items["Drill"].ID, slim.ID)
	assert.Equal(t, "Drill", slim.Title)
	assert.Empty(t, slim.VendorID)
	assert.Nil(t, slim.Price)

	omitted, err := c.Item.FindUnique(ctx, id, query.Projection{Omit: []string{"description"}})
	require.NoError(t, err)
	assert.Empty(t, omitted.Description)
	assert.Equal(t, cat.vendor.ID, omitted.VendorID)

	// Creating with a failing projection writes nothing.
	_, err = c.CategoryType.Create(ctx, query.Data{"name": "Light"}, query.Projection{Select: []string{"name"}, Include: []string{"items"}})
	assert.True(t, apperrors.IsValidation(err))
	exists, err := c.CategoryType.Exists(ctx, query.Equals("name", "Light"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInclude(t *testing.T) {
	c := newClient(t)
	cat := seedCatalog(t, c)
	ctx := context.Background()

	u, err := c.User.FindUniqueOrThrow(ctx, query.ID(cat.user.ID), query.Projection{
		Include: []string{"vendor.items.reviews", "reviews"},
	})
	require.NoError(t, err)
	require.NotNil(t, u.Vendor)
	assert.Equal(t, cat.vendor.ID, u.Vendor.ID)
	assert.Len(t, u.Reviews, 3)
	require.Len(t, u.Vendor.Items, 3)

	reviewsByItem := map[string]int{}
	for _, it := range u.Vendor.Items {
		reviewsByItem[it.Title] = len(it.Reviews)
	}
	assert.Equal(t, map[string]int{"Drill": 2, "Speaker": 1, "Stage": 0}, reviewsByItem)

	items, err := c.Item.FindMany(ctx, query.FindArgs{
		Include: []string{"categoryType", "vendor"},
		OrderBy: []query.Order{query.Asc("title")},
	})
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Nil(t, items[0].CategoryType)
	require.NotNil(t, items[1].CategoryType)
	assert.Equal(t, "Sound", items[1].CategoryType.Name)
	assert.Equal(t, "Globex", *items[4].Vendor.CompanyName)

	// Reverse to-one.
	booking, err := c.Booking.Create(ctx, query.Data{
		"startDate":  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		"endDate":    time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
		"totalPrice": 20,
		"userId":     cat.user.ID,
		"vendorId":   cat.vendor.ID,
	}, query.Projection{Include: []string{"payment", "item"}})
	require.NoError(t, err)
	assert.Nil(t, booking.Payment)
	assert.Nil(t, booking.Item)
	assert.True(t, booking.StartDate.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)), "got %v", booking.StartDate)
}
