package service

import (
	"context"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/client"
	"eventmarket/internal/domain"
	"eventmarket/internal/events"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/rs/zerolog"
)

const (
	minRating = 1
	maxRating = 5
)

// ReviewService writes reviews and keeps the derived ratings of their targets
// current: Item.avgRating and Vendor.rating are the average rating of the
// reviews pointing at them.
type ReviewService struct {
	client   *client.Client
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewReviewService(c *client.Client, eventBus domain.EventPublisher, logger *zerolog.Logger) *ReviewService {
	return &ReviewService{
		client:   c,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (s *ReviewService) Create(ctx context.Context, data query.Data) (*models.Review, error) {
	var review *models.Review
	var rating *float64
	err := s.client.Transaction(ctx, func(ctx context.Context, tx *client.Client) error {
		var err error
		review, err = tx.Review.Create(ctx, data)
		if err != nil {
			return err
		}
		if review.Rating < minRating || review.Rating > maxRating {
			return apperrors.Validation("Review.rating must be between %d and %d", minRating, maxRating)
		}
		if review.ItemID == nil && review.VendorID == nil {
			return apperrors.Validation("Review needs an item or a vendor")
		}
		rating, err = recomputeRating(ctx, tx, review)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.EventReviewCreated, review, rating)
	return review, nil
}

func (s *ReviewService) Delete(ctx context.Context, id string) (*models.Review, error) {
	var review *models.Review
	var rating *float64
	err := s.client.Transaction(ctx, func(ctx context.Context, tx *client.Client) error {
		var err error
		review, err = tx.Review.Delete(ctx, query.ID(id))
		if err != nil {
			return err
		}
		rating, err = recomputeRating(ctx, tx, review)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.EventReviewDeleted, review, rating)
	return review, nil
}

func (s *ReviewService) publish(eventType string, review *models.Review, rating *float64) {
	payload := events.ReviewEventPayload{
		ReviewID: review.ID,
		UserID:   review.UserID,
		Rating:   rating,
	}
	if review.ItemID != nil {
		payload.ItemID = *review.ItemID
	}
	if review.VendorID != nil {
		payload.VendorID = *review.VendorID
	}
	publishEvent(s.eventBus, s.logger, eventType, payload)
}

// recomputeRating refreshes the rating of the review's target and returns it.
// An item without reviews rates 0; a vendor without reviews has no rating.
func recomputeRating(ctx context.Context, tx *client.Client, review *models.Review) (*float64, error) {
	switch {
	case review.ItemID != nil:
		avg, err := averageRating(ctx, tx, "itemId", *review.ItemID)
		if err != nil {
			return nil, err
		}
		value := 0.0
		if avg != nil {
			value = *avg
		}
		if _, err := tx.Item.Update(ctx, query.ID(*review.ItemID), query.Update{query.Set("avgRating", value)}); err != nil {
			return nil, err
		}
		return &value, nil

	case review.VendorID != nil:
		avg, err := averageRating(ctx, tx, "vendorId", *review.VendorID)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Vendor.Update(ctx, query.ID(*review.VendorID), query.Update{query.Set("rating", avg)}); err != nil {
			return nil, err
		}
		return avg, nil
	}
	return nil, nil
}

func averageRating(ctx context.Context, tx *client.Client, field, id string) (*float64, error) {
	res, err := tx.Review.Aggregate(ctx, query.AggregateArgs{
		Where:      query.Equals(field, id),
		Aggregates: query.Aggregates{Avg: []string{"rating"}},
	})
	if err != nil {
		return nil, err
	}
	avg, ok := res.Avg["rating"].(float64)
	if !ok {
		return nil, nil
	}
	return &avg, nil
}
