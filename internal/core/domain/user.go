package domain

import (
	"net/url"
	"time"
)

// Role separates the two kinds of accounts.
type Role string

const (
	RoleSender Role = "sender"
	RoleRider  Role = "rider"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleSender || r == RoleRider
}

// Rider profile defaults applied at signup.
const (
	DefaultVehicleType = "Bicycle"
	DefaultPlateNumber = "LAG-442-XP"
)

// UserAccount is an entry of the user directory.
type UserAccount struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	Avatar       string    `json:"avatar"`
	Phone        string    `json:"phone,omitempty"`
	VehicleType  string    `json:"vehicle_type,omitempty"`
	PlateNumber  string    `json:"plate_number,omitempty"`
	IsAvailable  bool      `json:"is_available"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsRider reports whether the account belongs to a rider.
func (u *UserAccount) IsRider() bool {
	return u.Role == RoleRider
}

// Stamp returns the rider identity attached to deliveries.
func (u *UserAccount) Stamp() *RiderStamp {
	return &RiderStamp{
		ID:     u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
		Plate:  u.PlateNumber,
	}
}

// Clone returns a copy.
func (u *UserAccount) Clone() *UserAccount {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// AvatarURL returns the generated avatar for a display name.
func AvatarURL(seed string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(seed)
}
