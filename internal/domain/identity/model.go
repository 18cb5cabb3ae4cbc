package identity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rescue/rescue/internal/domain/blood"
	"github.com/rescue/rescue/internal/platform/geo"
	"github.com/rescue/rescue/internal/platform/push"
)

// Role is the closed set of user roles.
type Role string

const (
	RolePatient       Role = "patient"
	RoleDonor         Role = "donor"
	RoleHospitalStaff Role = "hospital_staff"
	RoleAdmin         Role = "admin"
)

var Roles = []Role{RolePatient, RoleDonor, RoleHospitalStaff, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDonor, RoleHospitalStaff, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User maps to the users table.
type User struct {
	ID        uuid.UUID   `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Email     *string     `db:"email" json:"email,omitempty"`
	Phone     *string     `db:"phone" json:"phone,omitempty"`
	Role      Role        `db:"role" json:"role"`
	BloodType *blood.Type `db:"blood_type" json:"blood_type,omitempty"`
	Location  *geo.LatLon `json:"location,omitempty"`
	PushToken *string     `db:"push_token" json:"-"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// Actor returns the capability carried into domain operations on behalf of u.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

// Recipient addresses u for a push. An empty token yields a no_token outcome.
func (u *User) Recipient() push.Recipient {
	r := push.Recipient{UserID: u.ID}
	if u.PushToken != nil {
		r.Token = *u.PushToken
	}
	return r
}

// Contact is the subset of a user shared with the counterpart of a request.
type Contact struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone *string   `json:"phone,omitempty"`
	Email *string   `json:"email,omitempty"`
}

func (u *User) Contact() Contact {
	return Contact{ID: u.ID, Name: u.Name, Phone: u.Phone, Email: u.Email}
}

// Actor is an already-authenticated caller. Role checks happen once per
// operation against this value.
type Actor struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
}

// Is reports whether the actor holds one of roles.
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// DonorCandidate is a located, reachable donor returned by the matching prefilter.
type DonorCandidate struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	BloodType blood.Type `json:"blood_type"`
	Location  geo.LatLon `json:"location"`
	PushToken string     `json:"-"`
}
