// Package model defines the access-management entity records served by the
// generic CRUD layer. Field shaping, validation rules and query building for
// these records live elsewhere; only the stored shape is declared here.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SystemUser is a human principal that can log in.
type SystemUser struct {
	bun.BaseModel `bun:"table:system_users,alias:su"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,notnull" json:"email"`
	IsActive  bool      `bun:"is_active" json:"isActive"`
	CreatedAt time.Time `bun:"created_at,nullzero" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updatedAt"`
}

// Role groups permissions for assignment to users.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	IsActive  bool      `bun:"is_active" json:"isActive"`
	CreatedAt time.Time `bun:"created_at,nullzero" json:"createdAt"`
}

// Permission is a single grantable capability.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	IsActive  bool      `bun:"is_active" json:"isActive"`
	CreatedAt time.Time `bun:"created_at,nullzero" json:"createdAt"`
}

// RolePermission links a permission into a role.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	RoleID       uuid.UUID `bun:"role_id,type:uuid,notnull" json:"roleId"`
	PermissionID uuid.UUID `bun:"permission_id,type:uuid,notnull" json:"permissionId"`
}

// Vessel is a representative business entity served by the same generic
// pipeline as the access-management records.
type Vessel struct {
	bun.BaseModel `bun:"table:vessels,alias:v"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name         string    `bun:"name,notnull" json:"name"`
	CallSign     string    `bun:"call_sign" json:"callSign,omitempty"`
	BuildDate    time.Time `bun:"build_date,nullzero" json:"buildDate"`
	EmailAddress string    `bun:"email_address" json:"emailAddress,omitempty"`
	IsActive     bool      `bun:"is_active" json:"isActive"`
}
