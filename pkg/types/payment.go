package types

import "time"

// Unlock is the proof that a company paid to view a request's contact.
// Existence of the row is both necessary and sufficient for disclosure.
// Rows are immutable and never deleted.
type Unlock struct {
	RequestID string    `db:"request_id"`
	CompanyID string    `db:"company_id"`
	PaymentID string    `db:"payment_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Payment is the top-level audit mirror of an unlock purchase.
type Payment struct {
	ID          string    `db:"id"`
	CompanyID   string    `db:"company_id"`
	RequestID   string    `db:"request_id"`
	AmountCents int64     `db:"amount_cents"`
	Currency    string    `db:"currency"`
	ProviderRef string    `db:"provider_ref"`
	CreatedAt   time.Time `db:"created_at"`
}

// CompanyJob is a denormalized dashboard row created alongside an unlock.
type CompanyJob struct {
	CompanyID   string    `db:"company_id"`
	RequestID   string    `db:"request_id"`
	RequestCode string    `db:"request_code"`
	CreatedAt   time.Time `db:"created_at"`
}

type ActivityLog struct {
	ID        string    `db:"id"`
	ActorID   string    `db:"actor_id"`
	Action    string    `db:"action"`
	Subject   string    `db:"subject"`
	CreatedAt time.Time `db:"created_at"`
}
