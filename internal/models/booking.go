package models

import "time"

type Booking struct {
	ID            string          `json:"id"`
	StartDate     time.Time       `json:"startDate"`
	EndDate       time.Time       `json:"endDate"`
	Address       *string         `json:"address"`
	Status        *BookingStatus  `json:"status"`
	Request       *BookingRequest `json:"request"`
	TotalPrice    float64         `json:"totalPrice"`
	PaymentStatus *PaymentStatus  `json:"paymentStatus"`
	UserID        string          `json:"userId"`
	VendorID      string          `json:"vendorId"`
	ItemID        *string         `json:"itemId"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	User    *User    `json:"user,omitempty"`
	Vendor  *Vendor  `json:"vendor,omitempty"`
	Item    *Item    `json:"item,omitempty"`
	Payment *Payment `json:"payment,omitempty"`
}

func (b *Booking) ModelName() string { return ModelBooking }

func (b *Booking) Bind() map[string]any {
	return map[string]any{
		"id":            &b.ID,
		"startDate":     &b.StartDate,
		"endDate":       &b.EndDate,
		"address":       &b.Address,
		"status":        &b.Status,
		"request":       &b.Request,
		"totalPrice":    &b.TotalPrice,
		"paymentStatus": &b.PaymentStatus,
		"userId":        &b.UserID,
		"vendorId":      &b.VendorID,
		"itemId":        &b.ItemID,
		"createdAt":     &b.CreatedAt,
		"updatedAt":     &b.UpdatedAt,
	}
}

func (b *Booking) Attach(relation string, related []Record) {
	switch relation {
	case "user":
		b.User = first[User](related)
	case "vendor":
		b.Vendor = first[Vendor](related)
	case "item":
		b.Item = first[Item](related)
	case "payment":
		b.Payment = first[Payment](related)
	}
}

type Payment struct {
	ID         string         `json:"id"`
	PaidAmount float64        `json:"paidAmount"`
	Debit      float64        `json:"debit"`
	Credit     float64        `json:"credit"`
	Reason     string         `json:"reason"`
	Status     PaymentStatus  `json:"status"`
	Method     *PaymentMethod `json:"method"`
	UserID     string         `json:"userId"`
	BookingID  *string        `json:"bookingId"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	User    *User    `json:"user,omitempty"`
	Booking *Booking `json:"booking,omitempty"`
}

func (p *Payment) ModelName() string { return ModelPayment }

func (p *Payment) Bind() map[string]any {
	return map[string]any{
		"id":         &p.ID,
		"paidAmount": &p.PaidAmount,
		"debit":      &p.Debit,
		"credit":     &p.Credit,
		"reason":     &p.Reason,
		"status":     &p.Status,
		"method":     &p.Method,
		"userId":     &p.UserID,
		"bookingId":  &p.BookingID,
		"createdAt":  &p.CreatedAt,
		"updatedAt":  &p.UpdatedAt,
	}
}

func (p *Payment) Attach(relation string, related []Record) {
	switch relation {
	case "user":
		p.User = first[User](related)
	case "booking":
		p.Booking = first[Booking](related)
	}
}
