package models

// Model names as they appear in query documents and events.
const (
	ModelUser         = "User"
	ModelVendor       = "Vendor"
	ModelItem         = "Item"
	ModelCategoryType = "CategoryType"
	ModelReview       = "Review"
	ModelSavedItem    = "SavedItem"
	ModelBooking      = "Booking"
	ModelPayment      = "Payment"
)

type Role string

const (
	RoleUser   Role = "USER"
	RoleVendor Role = "VENDOR"
	RoleAdmin  Role = "ADMIN"
)

type Category string

const (
	CategoryRentals  Category = "RENTALS"
	CategoryServices Category = "SERVICES"
	CategoryPackages Category = "PACKAGES"
)

type PricingUnit string

const (
	PricingUnitMinute PricingUnit = "MINUTE"
	PricingUnitHour   PricingUnit = "HOUR"
	PricingUnitDay    PricingUnit = "DAY"
	PricingUnitWeek   PricingUnit = "WEEK"
	PricingUnitMonth  PricingUnit = "MONTH"
)

type BookingType string

const (
	BookingTypeInstant BookingType = "INSTANT"
	BookingTypeRequest BookingType = "REQUEST"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusApproved  BookingStatus = "APPROVED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

type BookingRequest string

const (
	BookingRequestApproved BookingRequest = "APPROVED"
	BookingRequestPending  BookingRequest = "PENDING"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusProcessed PaymentStatus = "PROCESSED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodWallet   PaymentMethod = "WALLET"
)

// Enum names used by the schema to look up the closed value sets.
const (
	EnumRole           = "Role"
	EnumCategory       = "Category"
	EnumPricingUnit    = "PricingUnit"
	EnumBookingType    = "BookingType"
	EnumBookingStatus  = "BookingStatus"
	EnumBookingRequest = "BookingRequest"
	EnumPaymentStatus  = "PaymentStatus"
	EnumPaymentMethod  = "PaymentMethod"
)

// EnumValues lists the accepted values of every enum, in declaration order.
var EnumValues = map[string][]string{
	EnumRole:           {string(RoleUser), string(RoleVendor), string(RoleAdmin)},
	EnumCategory:       {string(CategoryRentals), string(CategoryServices), string(CategoryPackages)},
	EnumPricingUnit:    {string(PricingUnitMinute), string(PricingUnitHour), string(PricingUnitDay), string(PricingUnitWeek), string(PricingUnitMonth)},
	EnumBookingType:    {string(BookingTypeInstant), string(BookingTypeRequest)},
	EnumBookingStatus:  {string(BookingStatusPending), string(BookingStatusApproved), string(BookingStatusCompleted)},
	EnumBookingRequest: {string(BookingRequestApproved), string(BookingRequestPending)},
	EnumPaymentStatus: {
		string(PaymentStatusPending), string(PaymentStatusCompleted), string(PaymentStatusFailed),
		string(PaymentStatusProcessed), string(PaymentStatusCancelled),
	},
	EnumPaymentMethod: {string(PaymentMethodCard), string(PaymentMethodTransfer), string(PaymentMethodWallet)},
}

// ValidEnum reports whether value belongs to the named enum.
func ValidEnum(enum, value string) bool {
	for _, v := range EnumValues[enum] {
		if v == value {
			return true
		}
	}
	return false
}
