package models

import "time"

// Event is a wedding booking. It is owned by the bookings service and
// read-only here; the fields below are the ones the automatic-task rules
// monitor. Missing document fields decode to their zero values, so the rule
// predicates only ever see "empty", never "absent".
type Event struct {
	ID                string    `json:"id" bson:"_id"`
	BrideName         string    `json:"brideName" bson:"brideName"`
	Date              time.Time `json:"date" bson:"date"`
	MakeupArtistID    string    `json:"makeupArtistId" bson:"makeupArtistId"`
	MakeupArtistName  string    `json:"makeupArtistName" bson:"makeupArtistName"`
	TurbanStylistID   string    `json:"turbanStylistId" bson:"turbanStylistId"`
	TurbanStylistName string    `json:"turbanStylistName" bson:"turbanStylistName"`

	// TestimonialAskedBy holds the name of whoever asked the couple for a
	// testimonial; empty means nobody has yet.
	TestimonialAskedBy string `json:"testimonialAskedBy" bson:"testimonialAskedBy"`

	// SharingConsent records whether the couple agreed to social media
	// sharing of their photos.
	SharingConsent bool `json:"sharingConsent" bson:"sharingConsent"`

	// PaymentStatus is empty while payment is outstanding; any non-empty
	// value ("--", "paid 12.000", ...) means settled.
	PaymentStatus string `json:"paymentStatus" bson:"paymentStatus"`
}
