package account

import (
	"context"
	"errors"
	"time"
)

const (
	accountNotFoundMessageConstant = "account not found"
	accountExistsMessageConstant   = "account already exists"
)

var (
	// ErrAccountNotFound reports a lookup for an unknown account.
	ErrAccountNotFound = errors.New(accountNotFoundMessageConstant)
	// ErrAccountExists reports a creation request for an existing account.
	ErrAccountExists = errors.New(accountExistsMessageConstant)
)

// Account is the identity a migration operates on.
type Account struct {
	ID          string
	DisplayName string
	Enabled     bool
	LastLogin   time.Time
}

// Directory looks up, creates, and updates accounts.
type Directory interface {
	Get(executionContext context.Context, accountID string) (Account, error)
	Create(executionContext context.Context, accountID string) (Account, error)
	Update(executionContext context.Context, updated Account) error
}

// Record is the serialized form of an account inside an archive.
type Record struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Enabled     bool   `json:"enabled"`
	LastLogin   int64  `json:"lastLogin"`
}

// NewRecord captures the portable attributes of an account.
func NewRecord(source Account) Record {
	var lastLogin int64
	if !source.LastLogin.IsZero() {
		lastLogin = source.LastLogin.Unix()
	}
	return Record{
		UID:         source.ID,
		DisplayName: source.DisplayName,
		Enabled:     source.Enabled,
		LastLogin:   lastLogin,
	}
}

// ApplyTo copies the importable attributes onto target. The identifier and last login are left untouched.
func (record Record) ApplyTo(target Account) Account {
	target.DisplayName = record.DisplayName
	target.Enabled = record.Enabled
	return target
}
