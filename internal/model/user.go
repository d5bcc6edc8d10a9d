package model

import (
	"time"
)

// Role is a user's authorization level
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// UserStatus controls whether a user may log in
type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked"
)

// User represents the user model stored in the database
type User struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Name      string     `json:"name" gorm:"type:varchar(255);not null"`
	Email     string     `json:"email" gorm:"type:varchar(255);not null;uniqueIndex"`
	Password  string     `json:"-" gorm:"type:varchar(255);not null"`
	Role      Role       `json:"role" gorm:"type:varchar(20);not null;default:user"`
	Status    UserStatus `json:"status" gorm:"type:varchar(20);not null;default:active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsBlocked reports whether the user is barred from logging in
func (u *User) IsBlocked() bool {
	return u.Status == UserBlocked
}
