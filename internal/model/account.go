package model

import "time"

// Customer mirrors the `customers` table.  PasswordHash is never serialised.
type Customer struct {
	ID           uint64    `json:"id"`
	LoginID      string    `json:"loginId"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	PhoneNumber  string    `json:"phoneNumber"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Restaurant mirrors the `restaurants` table.
type Restaurant struct {
	ID           uint64    `json:"id"`
	LoginID      string    `json:"loginId"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Account is the role-independent view used by login and token refresh.
type Account struct {
	ID           uint64
	LoginID      string
	PasswordHash string
	Role         string
}

// RefreshToken models a row in `refresh_tokens`.  Only the SHA-256 hash of
// the raw token is stored.
//
// Fields:
//
//	SubjectID – customer or restaurant ID, interpreted through Role.
//	TokenHash – hex digest of the raw token value.
//	RevokedAt – when the token was revoked (nil while active).
type RefreshToken struct {
	ID        uint64
	SubjectID uint64
	Role      string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
