package types

import "time"

type RequestStatus string

const (
	RequestStatusNew        RequestStatus = "new"
	RequestStatusInInterest RequestStatus = "in_interest"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusCanceled   RequestStatus = "canceled"
)

type SurveyMethod string

const (
	SurveyMethodUploadNow   SurveyMethod = "upload_now"
	SurveyMethodUploadLater SurveyMethod = "upload_later"
	SurveyMethodVideoCall   SurveyMethod = "video_call"
	SurveyMethodInPerson    SurveyMethod = "in_person"
)

// Request is a customer's relocation job posting. Contact PII is never
// stored here; it lives in RequestContact so browsing a request cannot
// expose it.
type Request struct {
	ID     string `db:"id"`
	Code   string `db:"code"` // REQ-XXXXX, unique
	UserID string `db:"user_id"`

	ServiceType      string       `db:"service_type"`
	PickupProperty   string       `db:"pickup_property"`
	PickupCounty     string       `db:"pickup_county"`
	PickupCity       string       `db:"pickup_city"`
	PickupStreet     *string      `db:"pickup_street"`
	DeliveryProperty string       `db:"delivery_property"`
	DeliveryCounty   string       `db:"delivery_county"`
	DeliveryCity     string       `db:"delivery_city"`
	DeliveryStreet   *string      `db:"delivery_street"`
	MoveDate         *time.Time   `db:"move_date"`
	FlexibleDates    bool         `db:"flexible_dates"`
	Packing          *string      `db:"packing"`
	Dismantling      *string      `db:"dismantling"`
	SurveyMethod     SurveyMethod `db:"survey_method"`
	MediaURLs        []string     `db:"media_urls"` // text[]

	Status    RequestStatus `db:"status"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

// RequestContact is the restricted PII sub-record scoped to a request.
// Readable by the request owner and by companies that unlocked the lead.
type RequestContact struct {
	RequestID string    `db:"request_id"`
	Name      string    `db:"name"`
	Phone     string    `db:"phone"`
	Email     string    `db:"email"`
	CreatedAt time.Time `db:"created_at"`
}
