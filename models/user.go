package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Roles assignable to a user account.
const (
	RoleCitizen  = "citizen"
	RoleAdmin    = "admin"
	RolePolice   = "police"
	RoleAdvocate = "advocate"
)

// Account statuses.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
)

// IsAdminCapable reports whether the role may perform moderation actions.
func IsAdminCapable(role string) bool {
	switch role {
	case RoleAdmin, RolePolice, RoleAdvocate:
		return true
	}
	return false
}

// ValidRole reports whether role is one of the assignable roles.
func ValidRole(role string) bool {
	switch role {
	case RoleCitizen, RoleAdmin, RolePolice, RoleAdvocate:
		return true
	}
	return false
}

// ValidUserStatus reports whether status is an assignable account status.
func ValidUserStatus(status string) bool {
	switch status {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}

// User holds the structure for the users collection in mongo
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	Role      string             `bson:"role" json:"role"`
	Status    string             `bson:"status" json:"status"`
	CreatedAt primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}
