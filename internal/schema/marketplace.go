package schema

import (
	"unicode"

	"eventmarket/internal/models"
)

// Marketplace is the schema of the event marketplace.
var Marketplace = newSchema(
	&Model{
		Name:  models.ModelUser,
		Table: "users",
		Fields: withTimestamps(
			idField(),
			field("name", String),
			optional("profile", String),
			field("email", String),
			field("phone", String),
			field("password", String),
			withDefault(enumField("role", models.EnumRole), string(models.RoleUser)),
			withDefault(field("verified", Bool), false),
			optional("address", String),
			optional("city", String),
			optional("state", String),
			optional("country", String),
			optional("token", String),
			optional("tokenExpires", DateTime),
		),
		Unique: [][]string{{"id"}, {"email"}, {"phone"}},
		Relations: []Relation{
			reverseOne("vendor", models.ModelVendor, "userId"),
			reverseMany("bookings", models.ModelBooking, "userId"),
			reverseMany("reviews", models.ModelReview, "userId"),
			reverseMany("payments", models.ModelPayment, "userId"),
			reverseMany("savedItems", models.ModelSavedItem, "userId"),
		},
	},
	&Model{
		Name:  models.ModelVendor,
		Table: "vendors",
		Fields: withTimestamps(
			idField(),
			field("userId", String),
			optional("companyName", String),
			optional("companyEmail", String),
			optional("companyPhone", String),
			optional("companyAddress", String),
			optional("description", String),
			withDefault(field("verified", Bool), false),
			optional("rating", Float),
		),
		Unique: [][]string{{"id"}, {"userId"}},
		Relations: []Relation{
			owner("user", models.ModelUser, "userId", true, Restrict),
			reverseMany("reviews", models.ModelReview, "vendorId"),
			reverseMany("items", models.ModelItem, "vendorId"),
			reverseMany("bookings", models.ModelBooking, "vendorId"),
		},
	},
	&Model{
		Name:  models.ModelItem,
		Table: "items",
		Fields: withTimestamps(
			idField(),
			field("vendorId", String),
			optional("categoryId", String),
			field("title", String),
			field("description", String),
			optional("price", Float),
			optional("minPrice", Float),
			optional("quantity", Int),
			enumField("category", models.EnumCategory),
			nullableEnum("pricingUnit", models.EnumPricingUnit),
			withDefault(field("isAvailable", Bool), true),
			optional("status", String),
			optional("nextAvailableDate", DateTime),
			withDefault(field("images", StringList), []string{}),
			withDefault(field("locations", StringList), []string{}),
			withDefault(field("terms", StringList), []string{}),
			withDefault(field("offers", StringList), []string{}),
			withDefault(field("prices", StringList), []string{}),
			withDefault(enumField("bookingType", models.EnumBookingType), string(models.BookingTypeInstant)),
			withDefault(field("avgRating", Float), 0.0),
		),
		Unique: [][]string{{"id"}},
		Relations: []Relation{
			owner("vendor", models.ModelVendor, "vendorId", true, Restrict),
			owner("categoryType", models.ModelCategoryType, "categoryId", false, SetNull),
			reverseMany("savedItems", models.ModelSavedItem, "itemId"),
			reverseMany("reviews", models.ModelReview, "itemId"),
			reverseMany("bookings", models.ModelBooking, "itemId"),
		},
	},
	&Model{
		Name:  models.ModelCategoryType,
		Table: "category_types",
		Fields: withTimestamps(
			idField(),
			field("name", String),
		),
		Unique: [][]string{{"id"}, {"name"}},
		Relations: []Relation{
			reverseMany("items", models.ModelItem, "categoryId"),
		},
	},
	&Model{
		Name:  models.ModelReview,
		Table: "reviews",
		Fields: withTimestamps(
			idField(),
			field("comment", String),
			field("rating", Float),
			field("reviewer", String),
			field("userId", String),
			optional("itemId", String),
			optional("vendorId", String),
		),
		Unique: [][]string{{"id"}},
		Relations: []Relation{
			owner("user", models.ModelUser, "userId", true, Restrict),
			owner("item", models.ModelItem, "itemId", false, SetNull),
			owner("vendor", models.ModelVendor, "vendorId", false, SetNull),
		},
		Exclusive: [][]string{{"itemId", "vendorId"}},
	},
	&Model{
		Name:  models.ModelSavedItem,
		Table: "saved_items",
		Fields: withTimestamps(
			idField(),
			field("userId", String),
			field("itemId", String),
		),
		Unique: [][]string{{"id"}, {"userId", "itemId"}},
		Relations: []Relation{
			owner("user", models.ModelUser, "userId", true, Cascade),
			owner("item", models.ModelItem, "itemId", true, Cascade),
		},
	},
	&Model{
		Name:  models.ModelBooking,
		Table: "bookings",
		Fields: withTimestamps(
			idField(),
			field("startDate", DateTime),
			field("endDate", DateTime),
			optional("address", String),
			nullableEnum("status", models.EnumBookingStatus),
			nullableEnum("request", models.EnumBookingRequest),
			field("totalPrice", Float),
			nullableEnum("paymentStatus", models.EnumPaymentStatus),
			field("userId", String),
			field("vendorId", String),
			optional("itemId", String),
		),
		Unique: [][]string{{"id"}},
		Relations: []Relation{
			owner("user", models.ModelUser, "userId", true, Restrict),
			owner("vendor", models.ModelVendor, "vendorId", true, Restrict),
			owner("item", models.ModelItem, "itemId", false, SetNull),
			reverseOne("payment", models.ModelPayment, "bookingId"),
		},
	},
	&Model{
		Name:  models.ModelPayment,
		Table: "payments",
		Fields: withTimestamps(
			idField(),
			field("paidAmount", Float),
			field("debit", Float),
			field("credit", Float),
			field("reason", String),
			withDefault(enumField("status", models.EnumPaymentStatus), string(models.PaymentStatusPending)),
			nullableEnum("method", models.EnumPaymentMethod),
			field("userId", String),
			optional("bookingId", String),
		),
		Unique: [][]string{{"id"}, {"bookingId"}},
		Relations: []Relation{
			owner("user", models.ModelUser, "userId", true, Restrict),
			owner("booking", models.ModelBooking, "bookingId", false, SetNull),
		},
	},
)

func field(name string, kind Kind) Field {
	return Field{Name: name, Column: snake(name), Kind: kind}
}

func optional(name string, kind Kind) Field {
	f := field(name, kind)
	f.Nullable = true
	return f
}

func enumField(name, enum string) Field {
	f := field(name, Enum)
	f.Enum = enum
	return f
}

func nullableEnum(name, enum string) Field {
	f := enumField(name, enum)
	f.Nullable = true
	return f
}

func withDefault(f Field, v any) Field {
	f.Default = v
	return f
}

func idField() Field {
	f := field("id", String)
	f.Managed = true
	return f
}

func withTimestamps(fields ...Field) []Field {
	created := field("createdAt", DateTime)
	created.Managed = true
	updated := field("updatedAt", DateTime)
	updated.Managed = true
	return append(fields, created, updated)
}

func owner(name, target, fk string, required bool, onDelete DeletePolicy) Relation {
	return Relation{
		Name:        name,
		Target:      target,
		Owner:       true,
		Required:    required,
		LocalField:  fk,
		TargetField: "id",
		OnDelete:    onDelete,
	}
}

func reverseOne(name, target, fk string) Relation {
	return Relation{Name: name, Target: target, LocalField: "id", TargetField: fk}
}

func reverseMany(name, target, fk string) Relation {
	r := reverseOne(name, target, fk)
	r.Many = true
	return r
}

func snake(name string) string {
	out := make([]rune, 0, len(name)+4)
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				out = append(out, '_')
			}
			r = unicode.ToLower(r)
		}
		out = append(out, r)
	}
	return string(out)
}
