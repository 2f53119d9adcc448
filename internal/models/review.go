package models

import "time"

type Review struct {
	ID        string    `json:"id"`
	Comment   string    `json:"comment"`
	Rating    float64   `json:"rating"`
	Reviewer  string    `json:"reviewer"`
	UserID    string    `json:"userId"`
	ItemID    *string   `json:"itemId"`
	VendorID  *string   `json:"vendorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User   *User   `json:"user,omitempty"`
	Item   *Item   `json:"item,omitempty"`
	Vendor *Vendor `json:"vendor,omitempty"`
}

func (r *Review) ModelName() string { return ModelReview }

func (r *Review) Bind() map[string]any {
	return map[string]any{
		"id":        &r.ID,
		"comment":   &r.Comment,
		"rating":    &r.Rating,
		"reviewer":  &r.Reviewer,
		"userId":    &r.UserID,
		"itemId":    &r.ItemID,
		"vendorId":  &r.VendorID,
		"createdAt": &r.CreatedAt,
		"updatedAt": &r.UpdatedAt,
	}
}

func (r *Review) Attach(relation string, related []Record) {
	switch relation {
	case "user":
		r.User = first[User](related)
	case "item":
		r.Item = first[Item](related)
	case "vendor":
		r.Vendor = first[Vendor](related)
	}
}

// ReviewTarget names what a review is about. A review targets an item, a vendor,
// or nothing; never both.
type ReviewTarget struct {
	ItemID   string
	VendorID string
}

// Target returns the review's target as recorded in its foreign keys.
func (r *Review) Target() ReviewTarget {
	var t ReviewTarget
	if r.ItemID != nil {
		t.ItemID = *r.ItemID
	}
	if r.VendorID != nil {
		t.VendorID = *r.VendorID
	}
	return t
}

// Valid reports whether at most one of item and vendor is set.
func (t ReviewTarget) Valid() bool {
	return t.ItemID == "" || t.VendorID == ""
}
