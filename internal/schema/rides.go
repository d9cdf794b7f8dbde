package schema

// Date/time layouts used by the ride bookings export.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// statusSynonyms folds the spellings seen in historical exports onto the
// canonical booking status values.
var statusSynonyms = map[string]string{
	"completed":               "Completed",
	"complete":                "Completed",
	"cancelled by customer":   "Cancelled By Customer",
	"canceled by customer":    "Cancelled By Customer",
	"cancelled by driver":     "Cancelled By Driver",
	"canceled by driver":      "Cancelled By Driver",
	"no driver found":         "No Driver Found",
	"incomplete":              "Incomplete",
	"driver not found":        "No Driver Found",
	"customer cancelled ride": "Cancelled By Customer",
}

var paymentSynonyms = map[string]string{
	"upi":         "UPI",
	"cash":        "Cash",
	"credit card": "Credit Card",
	"debit card":  "Debit Card",
	"uber wallet": "Uber Wallet",
}

// RideBookings is the contract for the ride bookings CSV export. booking_id
// is the natural key and is therefore required; the required set mirrors the
// columns every export row carries.
func RideBookings() Contract {
	return Contract{
		Name:       "ride_bookings",
		NaturalKey: "booking_id",
		HeaderMap: map[string]string{
			"Booking ID":                        "booking_id",
			"Customer ID":                       "customer_id",
			"Vehicle Type":                      "vehicle_type",
			"Pickup Location":                   "pickup_location",
			"Drop Location":                     "drop_location",
			"Booking Status":                    "booking_status",
			"Booking Value":                     "booking_value",
			"Ride Distance":                     "ride_distance",
			"Driver Ratings":                    "driver_ratings",
			"Customer Rating":                   "customer_rating",
			"Cancelled Rides by Customer":       "cancelled_rides_by_customer",
			"Reason for Cancelling by Customer": "reason_for_cancelling_by_customer",
			"Cancelled Rides by Driver":         "cancelled_rides_by_driver",
			"Driver Cancellation Reason":        "driver_cancellation_reason",
			"Incomplete Rides":                  "incomplete_rides",
			"Incomplete Rides Reason":           "incomplete_rides_reason",
			"Avg VTAT":                          "avg_vtat",
			"Avg CTAT":                          "avg_ctat",
			"Payment Method":                    "payment_method",
			"Date":                              "booking_date",
			"Time":                              "booking_time",
		},
		Fields: []Field{
			{Name: "booking_id", Type: TypeID, Required: true},
			{Name: "customer_id", Type: TypeID, Required: true},
			{Name: "vehicle_type", Type: TypeCategory, Required: true},
			{Name: "booking_status", Type: TypeCategory, Required: true, Synonyms: statusSynonyms},
			{Name: "booking_date", Type: TypeDate, Required: true, Layout: DateLayout},
			{Name: "booking_time", Type: TypeTime, Required: true, Layout: TimeLayout},
			{Name: "pickup_location", Type: TypeCategory},
			{Name: "drop_location", Type: TypeCategory},
			{Name: "booking_value", Type: TypeDecimal},
			{Name: "ride_distance", Type: TypeDecimal},
			{Name: "driver_ratings", Type: TypeDecimal},
			{Name: "customer_rating", Type: TypeDecimal},
			{Name: "avg_vtat", Type: TypeDecimal},
			{Name: "avg_ctat", Type: TypeDecimal},
			{Name: "cancelled_rides_by_customer", Type: TypeFlag},
			{Name: "reason_for_cancelling_by_customer", Type: TypeCategory},
			{Name: "cancelled_rides_by_driver", Type: TypeFlag},
			{Name: "driver_cancellation_reason", Type: TypeCategory},
			{Name: "incomplete_rides", Type: TypeFlag},
			{Name: "incomplete_rides_reason", Type: TypeCategory},
			{Name: "payment_method", Type: TypeCategory, Synonyms: paymentSynonyms},
		},
	}
}
