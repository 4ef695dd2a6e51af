// Package model defines data structures for the messaging platform.
package model

// Role is the portal role of a user.
type Role string

const (
	RoleStudent Role = "ESTUDANTE"
	RoleTeacher Role = "PROFESSOR"
	RoleAdmin   Role = "ADMIN"
)

// Profile is the identity shape consumed from the external identity
// provider. CourseID is zero and ClassSection empty when the user has no
// course affiliation (e.g. admins).
type Profile struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Role         Role   `json:"role"`
	CourseID     int64  `json:"course_id,omitempty"`
	ClassSection string `json:"class_section,omitempty"`
}
