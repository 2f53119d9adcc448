package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/client"
	"eventmarket/internal/domain"
	"eventmarket/internal/events"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/rs/zerolog"
)

// BookingInput is what a user submits to book an item.
type BookingInput struct {
	UserID    string
	ItemID    string
	StartDate time.Time
	EndDate   time.Time
	Address   *string
}

// PaymentInput settles a booking.
type PaymentInput struct {
	BookingID string
	Amount    float64
	Method    models.PaymentMethod
}

type BookingService struct {
	client         *client.Client
	eventBus       domain.EventPublisher
	maxBookingDays int
	logger         *zerolog.Logger
	now            func() time.Time
}

func NewBookingService(c *client.Client, eventBus domain.EventPublisher, maxBookingDays int, logger *zerolog.Logger) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = 365
	}
	return &BookingService{
		client:         c,
		eventBus:       eventBus,
		maxBookingDays: maxBookingDays,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *BookingService) ValidateBookingDates(start, end time.Time) error {
	if end.Before(start) {
		return apperrors.Validation("Booking.endDate must not be before startDate")
	}

	now := s.now()
	if start.Before(now.AddDate(0, 0, -1)) {
		return apperrors.Validation("Booking.startDate is in the past")
	}

	if start.After(now.AddDate(0, 0, s.maxBookingDays)) {
		return apperrors.Validation("Booking.startDate is more than %d days ahead", s.maxBookingDays)
	}

	return nil
}

// Create books an item for a user. The vendor is the item's vendor. INSTANT
// items are approved immediately; REQUEST items wait for the vendor.
func (s *BookingService) Create(ctx context.Context, in BookingInput) (*models.Booking, error) {
	if err := s.ValidateBookingDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	var booking *models.Booking
	err := s.client.Transaction(ctx, func(ctx context.Context, tx *client.Client) error {
		item, err := tx.Item.FindUniqueOrThrow(ctx, query.ID(in.ItemID))
		if err != nil {
			return err
		}
		if !item.IsAvailable {
			return apperrors.Conflict(nil, "item %s is not available", item.ID)
		}

		booked, err := tx.Booking.Count(ctx, query.CountArgs{Where: query.And(
			query.Equals("itemId", item.ID),
			query.In("status", models.BookingStatusPending, models.BookingStatusApproved),
			query.Lte("startDate", in.EndDate),
			query.Gte("endDate", in.StartDate),
		)})
		if err != nil {
			return err
		}
		if booked.All >= capacity(item) {
			return apperrors.Conflict(nil, "item %s is fully booked for the requested dates", item.ID)
		}

		data := query.Data{
			"userId":        in.UserID,
			"vendorId":      item.VendorID,
			"itemId":        item.ID,
			"startDate":     in.StartDate,
			"endDate":       in.EndDate,
			"address":       in.Address,
			"totalPrice":    totalPrice(item, in.StartDate, in.EndDate),
			"paymentStatus": models.PaymentStatusPending,
		}
		if item.BookingType == models.BookingTypeInstant {
			data["status"] = models.BookingStatusApproved
			data["request"] = models.BookingRequestApproved
		} else {
			data["status"] = models.BookingStatusPending
			data["request"] = models.BookingRequestPending
		}

		booking, err = tx.Booking.Create(ctx, data)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCreated, booking)
	return booking, nil
}

// Approve accepts a pending booking on behalf of its vendor.
func (s *BookingService) Approve(ctx context.Context, bookingID, vendorID string) (*models.Booking, error) {
	booking, err := s.transition(ctx, bookingID, models.BookingStatusPending, query.Update{
		query.Set("status", models.BookingStatusApproved),
		query.Set("request", models.BookingRequestApproved),
	}, func(b *models.Booking) error {
		if b.VendorID != vendorID {
			return apperrors.Validation("booking %s does not belong to vendor %s", b.ID, vendorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingApproved, booking)
	return booking, nil
}

func (s *BookingService) Complete(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.transition(ctx, bookingID, models.BookingStatusApproved, query.Update{
		query.Set("status", models.BookingStatusCompleted),
	}, nil)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingCompleted, booking)
	return booking, nil
}

// Pay records a payment towards an approved or completed booking and mirrors
// its status on the booking. A booking has one payment record: later calls
// add to it until the total price is covered, after which it is closed.
func (s *BookingService) Pay(ctx context.Context, in PaymentInput) (*models.Payment, error) {
	if in.Amount <= 0 {
		return nil, apperrors.Validation("Payment.paidAmount must be positive")
	}

	var payment *models.Payment
	var booking *models.Booking
	err := s.client.Transaction(ctx, func(ctx context.Context, tx *client.Client) error {
		b, err := tx.Booking.FindUniqueOrThrow(ctx, query.ID(in.BookingID))
		if err != nil {
			return err
		}
		if b.Status == nil || *b.Status == models.BookingStatusPending {
			return apperrors.Conflict(nil, "booking %s is not approved", b.ID)
		}

		existing, err := tx.Payment.FindUnique(ctx, query.Unique{"bookingId": b.ID})
		if err != nil {
			return err
		}
		paid := in.Amount
		if existing != nil {
			if existing.Status == models.PaymentStatusCompleted {
				return apperrors.Conflict(nil, "booking %s is already paid", b.ID)
			}
			paid += existing.PaidAmount
		}

		status := models.PaymentStatusCompleted
		if paid < b.TotalPrice {
			status = models.PaymentStatusPending
		}
		data := query.Data{
			"paidAmount": paid,
			"debit":      paid,
			"credit":     math.Max(b.TotalPrice-paid, 0),
			"status":     status,
		}
		if in.Method != "" {
			data["method"] = in.Method
		}

		if existing == nil {
			data["reason"] = fmt.Sprintf("booking %s", b.ID)
			data["userId"] = b.UserID
			data["bookingId"] = b.ID
			payment, err = tx.Payment.Create(ctx, data)
		} else {
			payment, err = tx.Payment.Update(ctx, query.ID(existing.ID), query.SetAll(data))
		}
		if err != nil {
			return err
		}

		booking, err = tx.Booking.Update(ctx, query.ID(b.ID), query.Update{query.Set("paymentStatus", status)})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingPaid, booking)
	return payment, nil
}

func (s *BookingService) transition(ctx context.Context, bookingID string, from models.BookingStatus, upd query.Update, check func(*models.Booking) error) (*models.Booking, error) {
	var booking *models.Booking
	err := s.client.Transaction(ctx, func(ctx context.Context, tx *client.Client) error {
		b, err := tx.Booking.FindUniqueOrThrow(ctx, query.ID(bookingID))
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(b); err != nil {
				return err
			}
		}
		if b.Status == nil || *b.Status != from {
			return apperrors.Conflict(nil, "booking %s is %s, expected %s", b.ID, statusOf(b), from)
		}
		booking, err = tx.Booking.Update(ctx, query.ID(b.ID), upd)
		return err
	})
	return booking, err
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking) {
	payload := events.BookingEventPayload{
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		VendorID:   booking.VendorID,
		Status:     statusOf(booking),
		StartDate:  booking.StartDate,
		EndDate:    booking.EndDate,
		TotalPrice: booking.TotalPrice,
	}
	if booking.ItemID != nil {
		payload.ItemID = *booking.ItemID
	}
	if booking.PaymentStatus != nil {
		payload.PaymentStatus = string(*booking.PaymentStatus)
	}
	publishEvent(s.eventBus, s.logger, eventType, payload)
}

func statusOf(b *models.Booking) string {
	if b.Status == nil {
		return "unset"
	}
	return string(*b.Status)
}

// capacity is how many bookings an item takes at once.
func capacity(item *models.Item) int64 {
	if item.Quantity != nil && *item.Quantity > 0 {
		return *item.Quantity
	}
	return 1
}

var pricingUnits = map[models.PricingUnit]time.Duration{
	models.PricingUnitMinute: time.Minute,
	models.PricingUnitHour:   time.Hour,
	models.PricingUnitDay:    24 * time.Hour,
	models.PricingUnitWeek:   7 * 24 * time.Hour,
	models.PricingUnitMonth:  30 * 24 * time.Hour,
}

// totalPrice charges the item price once per started pricing unit, with a
// minimum of one unit and at least the item's minPrice. Items without a
// pricing unit are charged their price once.
func totalPrice(item *models.Item, start, end time.Time) float64 {
	if item.Price == nil {
		return 0
	}
	units := 1.0
	if item.PricingUnit != nil {
		if unit, ok := pricingUnits[*item.PricingUnit]; ok {
			units = math.Max(1, math.Ceil(float64(end.Sub(start))/float64(unit)))
		}
	}
	total := *item.Price * units
	if item.MinPrice != nil && total < *item.MinPrice {
		total = *item.MinPrice
	}
	return total
}
