package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer maps an external customer id to the owner id wallets are keyed by.
type Customer struct {
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	CustomerXID string    `json:"customer_xid" db:"customer_xid"`
	Token       *string   `json:"-" db:"token"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
