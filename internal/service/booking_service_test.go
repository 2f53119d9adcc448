package service

import (
	"context"
	"testing"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/client"
	"eventmarket/internal/events"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var bookingNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func setupBookingService(t *testing.T) (*BookingService, *client.Client, *mockPublisher) {
	t.Helper()
	c := setupClient(t)
	pub := new(mockPublisher)
	svc := NewBookingService(c, pub, 90, testLogger())
	svc.now = func() time.Time { return bookingNow }
	return svc, c, pub
}

func days(from time.Time, n int) (time.Time, time.Time) {
	start := from.AddDate(0, 0, 9)
	return start, start.AddDate(0, 0, n)
}

func TestBookingService_ValidateBookingDates(t *testing.T) {
	svc, _, _ := setupBookingService(t)

	start, end := days(bookingNow, 2)
	assert.NoError(t, svc.ValidateBookingDates(start, end))
	assert.NoError(t, svc.ValidateBookingDates(start, start))

	for name, tc := range map[string]struct{ start, end time.Time }{
		"end before start": {end, start},
		"in the past":      {bookingNow.AddDate(0, 0, -3), bookingNow},
		"too far ahead":    {bookingNow.AddDate(0, 0, 91), bookingNow.AddDate(0, 0, 92)},
	} {
		t.Run(name, func(t *testing.T) {
			err := svc.ValidateBookingDates(tc.start, tc.end)
			assert.True(t, apperrors.IsValidation(err), "got %v", err)
		})
	}
}

func TestBookingService_Lifecycle(t *testing.T) {
	svc, c, pub := setupBookingService(t)
	ctx := context.Background()
	pub.On("PublishJSON", mock.Anything, mock.AnythingOfType("events.BookingEventPayload")).Return(nil)

	user := createUser(t, c, 1)
	vendor := createVendor(t, c, 2)
	other := createVendor(t, c, 3)
	item := createItem(t, c, vendor.ID, query.Data{"price": 100.0, "pricingUnit": "DAY", "bookingType": "REQUEST"})

	start, end := days(bookingNow, 2)
	booking, err := svc.Create(ctx, BookingInput{UserID: user.ID, ItemID: item.ID, StartDate: start, EndDate: end})
	require.NoError(t, err)
	require.NotNil(t, booking.Status)
	assert.Equal(t, models.BookingStatusPending, *booking.Status)
	assert.Equal(t, models.BookingRequestPending, *booking.Request)
	assert.Equal(t, models.PaymentStatusPending, *booking.PaymentStatus)
	assert.Equal(t, vendor.ID, booking.VendorID)
	assert.InDelta(t, 200.0, booking.TotalPrice, 1e-9)

	_, err = svc.Pay(ctx, PaymentInput{BookingID: booking.ID, Amount: 200})
	assert.True(t, apperrors.IsConflict(err), "pending bookings are not payable: %v", err)

	_, err = svc.Complete(ctx, booking.ID)
	assert.True(t, apperrors.IsConflict(err))

	_, err = svc.Approve(ctx, booking.ID, other.ID)
	assert.True(t, apperrors.IsValidation(err))

	approved, err := svc.Approve(ctx, booking.ID, vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApproved, *approved.Status)
	assert.Equal(t, models.BookingRequestApproved, *approved.Request)

	_, err = svc.Approve(ctx, booking.ID, vendor.ID)
	assert.True(t, apperrors.IsConflict(err))

	payment, err := svc.Pay(ctx, PaymentInput{BookingID: booking.ID, Amount: 150, Method: models.PaymentMethodCard})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.InDelta(t, 50.0, payment.Credit, 1e-9)
	require.NotNil(t, payment.BookingID)
	assert.Equal(t, booking.ID, *payment.BookingID)
	assert.Equal(t, user.ID, payment.UserID)

	completed, err := svc.Complete(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCompleted, *completed.Status)
	assert.Equal(t, models.PaymentStatusPending, *completed.PaymentStatus)

	// The remainder tops up the same payment record.
	settled, err := svc.Pay(ctx, PaymentInput{BookingID: booking.ID, Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, payment.ID, settled.ID)
	assert.Equal(t, models.PaymentStatusCompleted, settled.Status)
	assert.InDelta(t, 200.0, settled.PaidAmount, 1e-9)
	assert.Zero(t, settled.Credit)
	require.NotNil(t, settled.Method)
	assert.Equal(t, models.PaymentMethodCard, *settled.Method)

	_, err = svc.Pay(ctx, PaymentInput{BookingID: booking.ID, Amount: 10})
	assert.True(t, apperrors.IsConflict(err), "a settled booking takes no more payments: %v", err)

	paid, err := c.Booking.FindUniqueOrThrow(ctx, query.ID(booking.ID))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, *paid.PaymentStatus)

	withPayment, err := c.Booking.FindUniqueOrThrow(ctx, query.ID(booking.ID), query.Projection{Include: []string{"payment"}})
	require.NoError(t, err)
	require.NotNil(t, withPayment.Payment)
	assert.Equal(t, payment.ID, withPayment.Payment.ID)

	pub.AssertCalled(t, "PublishJSON", events.EventBookingCreated, mock.Anything)
	pub.AssertCalled(t, "PublishJSON", events.EventBookingApproved, mock.Anything)
	pub.AssertCalled(t, "PublishJSON", events.EventBookingPaid, mock.Anything)
	pub.AssertCalled(t, "PublishJSON", events.EventBookingCompleted, mock.Anything)
	pub.AssertNumberOfCalls(t, "PublishJSON", 5)
}

func TestBookingService_InstantAndPaid(t *testing.T) {
	svc, c, pub := setupBookingService(t)
	ctx := context.Background()
	pub.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	user := createUser(t, c, 1)
	vendor := createVendor(t, c, 2)
	item := createItem(t, c, vendor.ID, query.Data{"price": 80.0})

	start, end := days(bookingNow, 3)
	booking, err := svc.Create(ctx, BookingInput{UserID: user.ID, ItemID: item.ID, StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApproved, *booking.Status)
	assert.Equal(t, models.BookingRequestApproved, *booking.Request)
	assert.InDelta(t, 80.0, booking.TotalPrice, 1e-9)

	payment, err := svc.Pay(ctx, PaymentInput{BookingID: booking.ID, Amount: 80, Method: models.PaymentMethodWallet})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Zero(t, payment.Credit)

	got, err := c.Booking.FindUniqueOrThrow(ctx, query.ID(booking.ID))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, *got.PaymentStatus)
}

func TestBookingService_Availability(t *testing.T) {
	svc, c, pub := setupBookingService(t)
	ctx := context.Background()
	pub.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)

	user := createUser(t, c, 1)
	vendor := createVendor(t, c, 2)
	item := createItem(t, c, vendor.ID, query.Data{"quantity": 2})
	start, end := days(bookingNow, 2)

	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, BookingInput{UserID: user.ID, ItemID: item.ID, StartDate: start, EndDate: end})
		require.NoError(t, err)
	}

	_, err := svc.Create(ctx, BookingInput{UserID: user.ID, ItemID: item.ID, StartDate: start.Add(time.Hour), EndDate: end.Add(time.Hour)})
	assert.True(t, apperrors.IsConflict(err), "got %v", err)

	later := end.AddDate(0, 0, 1)
	_, err = svc.Create(ctx, BookingInput{UserID: user.ID, ItemID: item.ID, StartDate: later, EndDate: later.AddDate(0, 0, 1)})
	assert.NoError(t, err)

	_, err = c.Item.Update(ctx, query.ID(item.ID), query.Update{query.Set("isAvailable", false)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, BookingInput{UserID: user.ID, ItemID: item.ID, StartDate: later, EndDate: later})
	assert.True(t, apperrors.IsConflict(err))

	_, err = svc.Create(ctx, BookingInput{UserID: user.ID, ItemID: "missing", StartDate: start, EndDate: end})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.Create(ctx, BookingInput{UserID: "nobody", ItemID: createItem(t, c, vendor.ID, nil).ID, StartDate: start, EndDate: end})
	assert.True(t, apperrors.IsValidation(err), "unknown user is a missing relation: %v", err)

	n, err := c.Booking.Count(ctx, query.CountArgs{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n.All)
}

func TestTotalPrice(t *testing.T) {
	price := func(v float64) *float64 { return &v }
	unit := func(u models.PricingUnit) *models.PricingUnit { return &u }
	start := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		item models.Item
		end  time.Time
		want float64
	}{
		{"no price", models.Item{}, start.Add(time.Hour), 0},
		{"flat", models.Item{Price: price(50)}, start.AddDate(0, 0, 5), 50},
		{"hours round up", models.Item{Price: price(10), PricingUnit: unit(models.PricingUnitHour)}, start.Add(90 * time.Minute), 20},
		{"same instant is one unit", models.Item{Price: price(10), PricingUnit: unit(models.PricingUnitDay)}, start, 10},
		{"weeks", models.Item{Price: price(300), PricingUnit: unit(models.PricingUnitWeek)}, start.AddDate(0, 0, 8), 600},
		{"min price", models.Item{Price: price(10), MinPrice: price(25), PricingUnit: unit(models.PricingUnitHour)}, start.Add(time.Hour), 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, totalPrice(&tt.item, start, tt.end), 1e-9)
		})
	}
}
