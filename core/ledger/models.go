package ledger

import (
	"database/sql"
	"time"
)

// Pending payment statuses. Transitions are monotonic:
// pending -> confirmed | rejected, never back.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
)

// Membership is the durable record of one user's channel subscription.
// At most one row exists per user; a new purchase overwrites the old row.
type Membership struct {
	UserID          int64        `db:"user_id"`
	Username        string       `db:"username"`
	FirstName       string       `db:"first_name"`
	LastName        string       `db:"last_name"`
	SubscriptionEnd sql.NullTime `db:"subscription_end"`
	JoinedDate      time.Time    `db:"joined_date"`
}

// PendingPayment is an unconfirmed manual payment claim awaiting an admin
// decision. Rows are never deleted; they form the audit trail.
type PendingPayment struct {
	ID             int64     `db:"id"`
	UserID         int64     `db:"user_id"`
	Plan           string    `db:"plan"`
	Amount         int64     `db:"amount"`
	ProofSubmitted bool      `db:"proof_submitted"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
}
