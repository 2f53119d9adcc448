package models

import "time"

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Profile      *string    `json:"profile"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Password     string     `json:"password,omitempty"`
	Role         Role       `json:"role"`
	Verified     bool       `json:"verified"`
	Address      *string    `json:"address"`
	City         *string    `json:"city"`
	State        *string    `json:"state"`
	Country      *string    `json:"country"`
	Token        *string    `json:"token,omitempty"`
	TokenExpires *time.Time `json:"tokenExpires,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	Vendor     *Vendor     `json:"vendor,omitempty"`
	Bookings   []Booking   `json:"bookings,omitempty"`
	Reviews    []Review    `json:"reviews,omitempty"`
	Payments   []Payment   `json:"payments,omitempty"`
	SavedItems []SavedItem `json:"savedItems,omitempty"`
}

func (u *User) ModelName() string { return ModelUser }

func (u *User) Bind() map[string]any {
	return map[string]any{
		"id":           &u.ID,
		"name":         &u.Name,
		"profile":      &u.Profile,
		"email":        &u.Email,
		"phone":        &u.Phone,
		"password":     &u.Password,
		"role":         &u.Role,
		"verified":     &u.Verified,
		"address":      &u.Address,
		"city":         &u.City,
		"state":        &u.State,
		"country":      &u.Country,
		"token":        &u.Token,
		"tokenExpires": &u.TokenExpires,
		"createdAt":    &u.CreatedAt,
		"updatedAt":    &u.UpdatedAt,
	}
}

func (u *User) Attach(relation string, related []Record) {
	switch relation {
	case "vendor":
		u.Vendor = first[Vendor](related)
	case "bookings":
		u.Bookings = collect[Booking](related)
	case "reviews":
		u.Reviews = collect[Review](related)
	case "payments":
		u.Payments = collect[Payment](related)
	case "savedItems":
		u.SavedItems = collect[SavedItem](related)
	}
}

type Vendor struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CompanyName    *string   `json:"companyName"`
	CompanyEmail   *string   `json:"companyEmail"`
	CompanyPhone   *string   `json:"companyPhone"`
	CompanyAddress *string   `json:"companyAddress"`
	Description    *string   `json:"description"`
	Verified       bool      `json:"verified"`
	Rating         *float64  `json:"rating"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	User     *User     `json:"user,omitempty"`
	Reviews  []Review  `json:"reviews,omitempty"`
	Items    []Item    `json:"items,omitempty"`
	Bookings []Booking `json:"bookings,omitempty"`
}

func (v *Vendor) ModelName() string { return ModelVendor }

func (v *Vendor) Bind() map[string]any {
	return map[string]any{
		"id":             &v.ID,
		"userId":         &v.UserID,
		"companyName":    &v.CompanyName,
		"companyEmail":   &v.CompanyEmail,
		"companyPhone":   &v.CompanyPhone,
		"companyAddress": &v.CompanyAddress,
		"description":    &v.Description,
		"verified":       &v.Verified,
		"rating":         &v.Rating,
		"createdAt":      &v.CreatedAt,
		"updatedAt":      &v.UpdatedAt,
	}
}

func (v *Vendor) Attach(relation string, related []Record) {
	switch relation {
	case "user":
		v.User = first[User](related)
	case "reviews":
		v.Reviews = collect[Review](related)
	case "items":
		v.Items = collect[Item](related)
	case "bookings":
		v.Bookings = collect[Booking](related)
	}
}
