package model

import (
	"strings"
	"time"
)

// Role determines a user's capability set.
type Role string

const (
	RoleOperator  Role = "OPERADOR"
	RoleManager   Role = "GESTOR"
	RoleAdmMaster Role = "ADM_MASTER"
)

// ParseRole maps a stored or submitted role to a Role. Anything unknown is
// the default OPERADOR.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleManager:
		return RoleManager
	case RoleAdmMaster:
		return RoleAdmMaster
	default:
		return RoleOperator
	}
}

// KnownRole reports whether s names one of the three roles exactly.
func KnownRole(s string) bool {
	switch Role(s) {
	case RoleOperator, RoleManager, RoleAdmMaster:
		return true
	}
	return false
}

// User is a person acting on the system.
type User struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	Department string    `json:"department,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Actor is the acting identity passed explicitly to every command.
type Actor struct {
	ID   int64
	Name string
	Role Role
}

// Actor returns the acting identity of u.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Name: u.Name, Role: u.Role}
}
