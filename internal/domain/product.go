package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a sneaker listed for auction. Catalog management (CSV
// import, image handling) lives outside this core; the fields here are the
// ones bidding and shipping need.
type Product struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Brand         string    `json:"brand" db:"brand"`
	Size          string    `json:"size" db:"size"`
	DeclaredValue int64     `json:"declared_value" db:"declared_value"` // cents
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
