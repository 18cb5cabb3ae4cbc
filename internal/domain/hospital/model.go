package hospital

import (
	"time"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/platform/geo"
)

// Hospital maps to the hospitals table. OwnerUserID is the hospital_staff
// account that decides its requests and reports operation outcomes.
type Hospital struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	OwnerUserID uuid.UUID   `db:"owner_user_id" json:"owner_user_id"`
	Name        string      `db:"name" json:"name"`
	Address     string      `db:"address" json:"address"`
	Phone       *string     `db:"phone" json:"phone,omitempty"`
	Location    *geo.LatLon `json:"location,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Nearest is a hospital together with its distance from a search centre.
type Nearest struct {
	Hospital   *Hospital `json:"hospital"`
	DistanceKm float64   `json:"distance_km"`
}
