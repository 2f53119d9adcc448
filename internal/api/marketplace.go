package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"eventmarket/internal/apperrors"
	"eventmarket/internal/client"
	"eventmarket/internal/domain"
	"eventmarket/internal/logging"
	"eventmarket/internal/models"
	"eventmarket/internal/query"
	"eventmarket/internal/service"

	"github.com/rs/zerolog"
)

// Marketplace bundles the domain services served under /api/v1.
type Marketplace struct {
	Client     *client.Client
	Vendors    *service.VendorService
	Reviews    *service.ReviewService
	Bookings   *service.BookingService
	SavedItems *service.SavedItemService
}

func NewMarketplace(c *client.Client, eventBus domain.EventPublisher, maxBookingDays int, logger *zerolog.Logger) *Marketplace {
	return &Marketplace{
		Client:     c,
		Vendors:    service.NewVendorService(c, eventBus, logging.Component(logger, "vendors")),
		Reviews:    service.NewReviewService(c, eventBus, logging.Component(logger, "reviews")),
		Bookings:   service.NewBookingService(c, eventBus, maxBookingDays, logging.Component(logger, "bookings")),
		SavedItems: service.NewSavedItemService(c, logging.Component(logger, "saved_items")),
	}
}

type onboardRequest struct {
	UserID string          `json:"userId"`
	Data   json.RawMessage `json:"data"`
}

type reviewRequest struct {
	Data json.RawMessage `json:"data"`
}

type bookingRequest struct {
	UserID    string    `json:"userId"`
	ItemID    string    `json:"itemId"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Address   *string   `json:"address"`
}

type approveRequest struct {
	VendorID string `json:"vendorId"`
}

type payRequest struct {
	Amount float64              `json:"amount"`
	Method models.PaymentMethod `json:"method"`
}

type savedItemRequest struct {
	UserID string `json:"userId"`
	ItemID string `json:"itemId"`
}

// MountMarketplace registers the service routes next to the query endpoints.
// They share the auth and rate limiting of /api/.
func (s *HTTPServer) MountMarketplace(m *Marketplace) {
	s.routes.HandleFunc("POST /api/v1/vendors/onboard", m.handleOnboard(s))
	s.routes.HandleFunc("POST /api/v1/reviews", m.handleCreateReview(s))
	s.routes.HandleFunc("DELETE /api/v1/reviews/{id}", m.handleDeleteReview(s))
	s.routes.HandleFunc("POST /api/v1/bookings", m.handleCreateBooking(s))
	s.routes.HandleFunc("POST /api/v1/bookings/{id}/approve", m.handleApproveBooking(s))
	s.routes.HandleFunc("POST /api/v1/bookings/{id}/complete", m.handleCompleteBooking(s))
	s.routes.HandleFunc("POST /api/v1/bookings/{id}/pay", m.handlePayBooking(s))
	s.routes.HandleFunc("POST /api/v1/saved-items/toggle", m.handleToggleSaved(s))
	s.routes.HandleFunc("GET /api/v1/users/{id}/saved-items", m.handleListSaved(s))
}

// serviceHandler checks perm, decodes the body into a T when withBody is set
// and writes the result of call under "data".
func serviceHandler[T any](s *HTTPServer, perm string, withBody bool, call func(r *http.Request, req *T) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := authorize(r.Context(), perm); err != nil {
			s.fail(w, r, err)
			return
		}
		var req T
		if withBody {
			if err := decodeBody(r, &req); err != nil {
				s.fail(w, r, err)
				return
			}
		}
		out, code, err := call(r, &req)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		data, err := json.Marshal(out)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, code, Response{Data: data})
	}
}

// createData runs raw service input through the model decoder so the
// services see the same typed values as the query endpoint.
func (m *Marketplace) createData(model string, raw json.RawMessage) (query.Data, error) {
	if len(raw) == 0 {
		return nil, apperrors.Validation("data is required")
	}
	wrapped, err := json.Marshal(map[string]json.RawMessage{"data": raw})
	if err != nil {
		return nil, err
	}
	data, _, err := m.Client.Decoder().CreateArgs(model, wrapped)
	return data, err
}

func (m *Marketplace) handleOnboard(s *HTTPServer) http.HandlerFunc {
	return serviceHandler(s, PermWriteRecords, true, func(r *http.Request, req *onboardRequest) (any, int, error) {
		if strings.TrimSpace(req.UserID) == "" {
			return nil, 0, apperrors.Validation("userId is required")
		}
		profile, err := m.createData(models.ModelVendor, req.Data)
		if err != nil {
			return nil, 0, err
		}
		vendor, err := m.Vendors.Onboard(r.Context(), req.UserID, profile)
		return vendor, http.StatusCreated, err
	})
}

func (m *Marketplace) handleCreateReview(s *HTTPServer) http.HandlerFunc {
	return serviceHandler(s, PermWriteRecords, true, func(r *http.Request, req *reviewRequest) (any, int, error) {
		data, err := m.createData(models.ModelReview, req.Data)
		if err != nil {
			return nil, 0, err
		}
		review, err := m.Reviews.Create(r.Context(), data)
		return review, http.StatusCreated, err
	})
}

func (m *Marketplace) handleDeleteReview(s *HTTPServer) http.HandlerFunc {
	return serviceHandler(s, PermWriteRecords, false, func(r *http.Request, _ *struct{}) (any, int, error) {
		review, err := m.Reviews.Delete(r.Context(), r.PathValue("id"))
		return review, http.StatusOK, err
	})
}

func (m *Marketplace) handleCreateBooking(s *HTTPServer) http.HandlerFunc {
	return serviceHandler(s, PermWriteRecords, true, func(r *http.Request, req *bookingRequest) (any, int, error) {
		if req.UserID == "" || req.ItemID == "" {
			return nil, 0, apperrors.Validation("userId and itemId are required")
		}
		booking, err := m.Bookings.Create(r.Context(), service.BookingInput{
			UserID:    req.UserID,
			ItemID:    req.ItemID,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Address:   req.Address,
		})
		return booking, http.StatusCreated, err
	})
}

func (m *Marketplace) handleApproveBooking(s *HTTPServer) http.HandlerFunc {
	return serviceHandler(s, PermWriteRecords, true, func(r *http.Request, req *approveRequest) (any, int, error) {
		booking, err := m.Bookings.Approve(r.Context(), r.PathValue("id"), req.VendorID)
		return booking, http.StatusOK, err
	})
}

func (m *Marketplace) handleCompleteBooking(s *HTTPServer) http.HandlerFunc {
	return serviceHandler(s, PermWriteRecords, false, func(r *http.Request, _ *struct{}) (any, int, error) {
		booking, err := m.Bookings.Complete(r.Context(), r.PathValue("id"))
		return booking, http.StatusOK, err
	})
}

func (m *Marketplace) handlePayBooking(s *HTTPServer) http.HandlerFunc {
	return serviceHandler(s, PermWriteRecords, true, func(r *http.Request, req *payRequest) (any, int, error) {
		payment, err := m.Bookings.Pay(r.Context(), service.PaymentInput{
			BookingID: r.PathValue("id"),
			Amount:    req.Amount,
			Method:    req.Method,
		})
		return payment, http.StatusOK, err
	})
}

func (m *Marketplace) handleToggleSaved(s *HTTPServer) http.HandlerFunc {
	return serviceHandler(s, PermWriteRecords, true, func(r *http.Request, req *savedItemRequest) (any, int, error) {
		if req.UserID == "" || req.ItemID == "" {
			return nil, 0, apperrors.Validation("userId and itemId are required")
		}
		saved, err := m.SavedItems.Toggle(r.Context(), req.UserID, req.ItemID)
		return map[string]bool{"saved": saved}, http.StatusOK, err
	})
}

func (m *Marketplace) handleListSaved(s *HTTPServer) http.HandlerFunc {
	return serviceHandler(s, PermReadRecords, false, func(r *http.Request, _ *struct{}) (any, int, error) {
		items, err := m.SavedItems.List(r.Context(), r.PathValue("id"))
		return items, http.StatusOK, err
	})
}
