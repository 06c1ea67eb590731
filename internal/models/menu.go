package models

import (
	"time"

	"github.com/google/uuid"
)

// MenuItem is the catalog snapshot consulted when items are ordered
type MenuItem struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Available bool      `json:"available"`
	Stock     int       `json:"stock"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Role string

const (
	RoleKitchen Role = "kitchen"
	RoleWaiter  Role = "waiter"
	RoleOwner   Role = "owner"
)

func (r Role) IsValid() bool {
	return r == RoleKitchen || r == RoleWaiter || r == RoleOwner
}

// Staff is a restaurant employee identified by a PIN
type Staff struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Role    Role      `json:"role"`
	PinHash string    `json:"-"`
	Active  bool      `json:"active"`
}
