package models

import "time"

type Item struct {
	ID                string       `json:"id"`
	VendorID          string       `json:"vendorId"`
	CategoryID        *string      `json:"categoryId"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	Price             *float64     `json:"price"`
	MinPrice          *float64     `json:"minPrice"`
	Quantity          *int64       `json:"quantity"`
	Category          Category     `json:"category"`
	PricingUnit       *PricingUnit `json:"pricingUnit"`
	IsAvailable       bool         `json:"isAvailable"`
	Status            *string      `json:"status"`
	NextAvailableDate *time.Time   `json:"nextAvailableDate"`
	Images            StringList   `json:"images"`
	Locations         StringList   `json:"locations"`
	Terms             StringList   `json:"terms"`
	Offers            StringList   `json:"offers"`
	Prices            StringList   `json:"prices"`
	BookingType       BookingType  `json:"bookingType"`
	AvgRating         float64      `json:"avgRating"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`

	Vendor       *Vendor       `json:"vendor,omitempty"`
	CategoryType *CategoryType `json:"categoryType,omitempty"`
	SavedItems   []SavedItem   `json:"savedItems,omitempty"`
	Reviews      []Review      `json:"reviews,omitempty"`
	Bookings     []Booking     `json:"bookings,omitempty"`
}

func (i *Item) ModelName() string { return ModelItem }

func (i *Item) Bind() map[string]any {
	return map[string]any{
		"id":                &i.ID,
		"vendorId":          &i.VendorID,
		"categoryId":        &i.CategoryID,
		"title":             &i.Title,
		"description":       &i.Description,
		"price":             &i.Price,
		"minPrice":          &i.MinPrice,
		"quantity":          &i.Quantity,
		"category":          &i.Category,
		"pricingUnit":       &i.PricingUnit,
		"isAvailable":       &i.IsAvailable,
		"status":            &i.Status,
		"nextAvailableDate": &i.NextAvailableDate,
		"images":            &i.Images,
		"locations":         &i.Locations,
		"terms":             &i.Terms,
		"offers":            &i.Offers,
		"prices":            &i.Prices,
		"bookingType":       &i.BookingType,
		"avgRating":         &i.AvgRating,
		"createdAt":         &i.CreatedAt,
		"updatedAt":         &i.UpdatedAt,
	}
}

func (i *Item) Attach(relation string, related []Record) {
	switch relation {
	case "vendor":
		i.Vendor = first[Vendor](related)
	case "categoryType":
		i.CategoryType = first[CategoryType](related)
	case "savedItems":
		i.SavedItems = collect[SavedItem](related)
	case "reviews":
		i.Reviews = collect[Review](related)
	case "bookings":
		i.Bookings = collect[Booking](related)
	}
}

type CategoryType struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Items []Item `json:"items,omitempty"`
}

func (c *CategoryType) ModelName() string { return ModelCategoryType }

func (c *CategoryType) Bind() map[string]any {
	return map[string]any{
		"id":        &c.ID,
		"name":      &c.Name,
		"createdAt": &c.CreatedAt,
		"updatedAt": &c.UpdatedAt,
	}
}

func (c *CategoryType) Attach(relation string, related []Record) {
	if relation == "items" {
		c.Items = collect[Item](related)
	}
}

type SavedItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ItemID    string    `json:"itemId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	User *User `json:"user,omitempty"`
	Item *Item `json:"item,omitempty"`
}

func (s *SavedItem) ModelName() string { return ModelSavedItem }

func (s *SavedItem) Bind() map[string]any {
	return map[string]any{
		"id":        &s.ID,
		"userId":    &s.UserID,
		"itemId":    &s.ItemID,
		"createdAt": &s.CreatedAt,
		"updatedAt": &s.UpdatedAt,
	}
}

func (s *SavedItem) Attach(relation string, related []Record) {
	switch relation {
	case "user":
		s.User = first[User](related)
	case "item":
		s.Item = first[Item](related)
	}
}
