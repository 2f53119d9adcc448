package service

import (
	"context"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/client"
	"eventmarket/internal/models"
	"eventmarket/internal/query"

	"github.com/rs/zerolog"
)

type SavedItemService struct {
	client *client.Client
	logger *zerolog.Logger
}

func NewSavedItemService(c *client.Client, logger *zerolog.Logger) *SavedItemService {
	return &SavedItemService{client: c, logger: logger}
}

// Toggle saves the item for the user, or removes it when already saved. It
// reports whether the item is saved afterwards.
func (s *SavedItemService) Toggle(ctx context.Context, userID, itemID string) (bool, error) {
	saved := false
	err := s.client.Transaction(ctx, func(ctx context.Context, tx *client.Client) error {
		key := query.Unique{"userId": userID, "itemId": itemID}
		existing, err := tx.SavedItem.FindUnique(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			_, err = tx.SavedItem.Delete(ctx, key)
			return err
		}
		_, err = tx.SavedItem.Create(ctx, query.Data{"userId": userID, "itemId": itemID})
		saved = err == nil
		return err
	})
	if err != nil {
		return false, err
	}
	return saved, nil
}

// List returns the user's saved items, newest first, with the items loaded.
func (s *SavedItemService) List(ctx context.Context, userID string) ([]models.SavedItem, error) {
	if userID == "" {
		return nil, apperrors.Validation("userId is required")
	}
	return s.client.SavedItem.FindMany(ctx, query.FindArgs{
		Where:   query.Equals("userId", userID),
		OrderBy: []query.Order{query.Desc("createdAt"), query.Asc("id")},
		Include: []string{"item"},
	})
}
