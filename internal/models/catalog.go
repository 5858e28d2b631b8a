package models

import "time"

// Account is the billable entity owning pets and receiving invoices.
type Account struct {
	ID        int64     `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Email     string    `yaml:"email" json:"email"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// AccountMember links a user to an account for authorization checks.
type AccountMember struct {
	AccountID int64  `yaml:"account_id" json:"account_id"`
	UserID    int64  `yaml:"user_id" json:"user_id"`
	Role      string `yaml:"role" json:"role"` // owner, member
}

type Pet struct {
	ID        int64     `yaml:"id" json:"id"`
	AccountID int64     `yaml:"account_id" json:"account_id"`
	Name      string    `yaml:"name" json:"name"`
	Species   string    `yaml:"species" json:"species"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

type Sitter struct {
	ID        int64     `yaml:"id" json:"id"`
	UserID    int64     `yaml:"user_id" json:"user_id"`
	Name      string    `yaml:"name" json:"name"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	ChatID    int64     `yaml:"chat_id" json:"chat_id"` // notification channel
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// ServiceOffering is a sitter-published, priced, timed service type.
type ServiceOffering struct {
	ID              int64     `yaml:"id" json:"id"`
	SitterID        int64     `yaml:"sitter_id" json:"sitter_id"`
	Name            string    `yaml:"name" json:"name"`
	Description     string    `yaml:"description" json:"description"`
	DurationMinutes int64     `yaml:"duration_minutes" json:"duration_minutes"`
	PriceCents      int64     `yaml:"price_cents" json:"price_cents"`
	IsActive        bool      `yaml:"is_active" json:"is_active"`
	CreatedAt       time.Time `yaml:"created_at" json:"created_at"`
}

// Duration converts the offering length to a time.Duration.
func (o *ServiceOffering) Duration() time.Duration {
	return time.Duration(o.DurationMinutes) * time.Minute
}

// Requester identifies the authenticated caller of a lifecycle operation.
// It is resolved once at the boundary and passed explicitly into the core.
type Requester struct {
	UserID  int64
	IsAdmin bool
}
