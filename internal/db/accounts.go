package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/temirov/usermigration/internal/account"
	"github.com/temirov/usermigration/internal/db/driver"
)

const (
	selectAccountQueryConstant       = "SELECT id, display_name, enabled, last_login FROM accounts WHERE id = ?"
	listAccountsQueryConstant        = "SELECT id, display_name, enabled, last_login FROM accounts ORDER BY id"
	insertAccountQueryConstant       = "INSERT INTO accounts (id, display_name, enabled, last_login) VALUES (?, ?, ?, ?)"
	updateAccountQueryConstant       = "UPDATE accounts SET display_name = ?, enabled = ?, last_login = ? WHERE id = ?"
	loadAccountTemplateConstant      = "load account %s: %w"
	listAccountsTemplateConstant     = "list accounts: %w"
	createAccountTemplateConstant    = "create account %s: %w"
	updateAccountTemplateConstant    = "update account %s: %w"
	accountIDRequiredMessageConstant = "account identifier is required"
)

// ErrAccountIDRequired reports an account operation without an identifier.
var ErrAccountIDRequired = errors.New(accountIDRequiredMessageConstant)

// AccountStore is the SQL account directory.
type AccountStore struct {
	database *DB
}

// NewAccountStore binds the account directory to the database.
func NewAccountStore(database *DB) *AccountStore {
	return &AccountStore{database: database}
}

// Get loads one account.
func (store *AccountStore) Get(executionContext context.Context, accountID string) (account.Account, error) {
	row := store.database.queryRow(executionContext, selectAccountQueryConstant, accountID)
	loaded, scanError := scanAccount(row)
	if errors.Is(scanError, sql.ErrNoRows) {
		return account.Account{}, account.ErrAccountNotFound
	}
	if scanError != nil {
		return account.Account{}, fmt.Errorf(loadAccountTemplateConstant, accountID, scanError)
	}
	return loaded, nil
}

// Create adds an enabled account whose display name is its identifier.
func (store *AccountStore) Create(executionContext context.Context, accountID string) (account.Account, error) {
	trimmedAccountID := strings.TrimSpace(accountID)
	if len(trimmedAccountID) == 0 {
		return account.Account{}, ErrAccountIDRequired
	}
	created := account.Account{ID: trimmedAccountID, DisplayName: trimmedAccountID, Enabled: true}
	if _, insertError := store.database.exec(executionContext, insertAccountQueryConstant, created.ID, created.DisplayName, created.Enabled, int64(0)); insertError != nil {
		if driver.IsUniqueViolation(insertError) {
			return account.Account{}, account.ErrAccountExists
		}
		return account.Account{}, fmt.Errorf(createAccountTemplateConstant, trimmedAccountID, insertError)
	}
	return created, nil
}

// Update stores the mutable attributes of an existing account.
func (store *AccountStore) Update(executionContext context.Context, updated account.Account) error {
	result, updateError := store.database.exec(executionContext, updateAccountQueryConstant, updated.DisplayName, updated.Enabled, unixSeconds(updated.LastLogin), updated.ID)
	if updateError != nil {
		return fmt.Errorf(updateAccountTemplateConstant, updated.ID, updateError)
	}
	changed, affectedError := affectedAny(result)
	if affectedError != nil {
		return fmt.Errorf(updateAccountTemplateConstant, updated.ID, affectedError)
	}
	if !changed {
		return account.ErrAccountNotFound
	}
	return nil
}

// List returns every account ordered by identifier.
func (store *AccountStore) List(executionContext context.Context) ([]account.Account, error) {
	rows, queryError := store.database.query(executionContext, listAccountsQueryConstant)
	if queryError != nil {
		return nil, fmt.Errorf(listAccountsTemplateConstant, queryError)
	}
	defer func() { _ = rows.Close() }()

	var accounts []account.Account
	for rows.Next() {
		loaded, scanError := scanAccount(rows)
		if scanError != nil {
			return nil, fmt.Errorf(listAccountsTemplateConstant, scanError)
		}
		accounts = append(accounts, loaded)
	}
	if iterateError := rows.Err(); iterateError != nil {
		return nil, fmt.Errorf(listAccountsTemplateConstant, iterateError)
	}
	return accounts, nil
}

type rowScanner interface {
	Scan(destinations ...any) error
}

func scanAccount(row rowScanner) (account.Account, error) {
	var (
		loaded    account.Account
		lastLogin int64
	)
	if scanError := row.Scan(&loaded.ID, &loaded.DisplayName, &loaded.Enabled, &lastLogin); scanError != nil {
		return account.Account{}, scanError
	}
	loaded.LastLogin = fromUnixSeconds(lastLogin)
	return loaded, nil
}

func unixSeconds(instant time.Time) int64 {
	if instant.IsZero() {
		return 0
	}
	return instant.Unix()
}

func fromUnixSeconds(seconds int64) time.Time {
	if seconds == 0 {
		return time.Time{}
	}
	return time.Unix(seconds, 0).UTC()
}
