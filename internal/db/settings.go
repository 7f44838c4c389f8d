package db

import (
	"context"
	"fmt"

	"github.com/temirov/usermigration/internal/account"
)

const (
	selectSettingsQueryConstant   = "SELECT application, setting_key, setting_value FROM account_settings WHERE account_id = ? ORDER BY application, setting_key"
	upsertSettingQueryConstant    = "INSERT INTO account_settings (account_id, application, setting_key, setting_value) VALUES (?, ?, ?, ?) ON CONFLICT (account_id, application, setting_key) DO UPDATE SET setting_value = excluded.setting_value"
	loadSettingsTemplateConstant  = "load settings of account %s: %w"
	storeSettingsTemplateConstant = "store settings of account %s: %w"
)

// SettingsStore keeps per-account settings grouped by application.
type SettingsStore struct {
	database *DB
}

// NewSettingsStore binds the settings store to the database.
func NewSettingsStore(database *DB) *SettingsStore {
	return &SettingsStore{database: database}
}

// All loads every setting of the account. An account without settings yields an empty map.
func (store *SettingsStore) All(executionContext context.Context, accountID string) (account.Settings, error) {
	rows, queryError := store.database.query(executionContext, selectSettingsQueryConstant, accountID)
	if queryError != nil {
		return nil, fmt.Errorf(loadSettingsTemplateConstant, accountID, queryError)
	}
	defer func() { _ = rows.Close() }()

	settings := make(account.Settings)
	for rows.Next() {
		var application, key, value string
		if scanError := rows.Scan(&application, &key, &value); scanError != nil {
			return nil, fmt.Errorf(loadSettingsTemplateConstant, accountID, scanError)
		}
		settings.Set(application, key, value)
	}
	if iterateError := rows.Err(); iterateError != nil {
		return nil, fmt.Errorf(loadSettingsTemplateConstant, accountID, iterateError)
	}
	return settings, nil
}

// SetMany writes all values in one transaction, overwriting existing keys.
func (store *SettingsStore) SetMany(executionContext context.Context, accountID string, values account.Settings) error {
	transaction, beginError := store.database.driver.BeginTx(executionContext, nil)
	if beginError != nil {
		return fmt.Errorf(storeSettingsTemplateConstant, accountID, beginError)
	}

	upsertQuery := store.database.driver.Rebind(upsertSettingQueryConstant)
	for _, application := range values.Applications() {
		for key, value := range values[application] {
			if _, upsertError := transaction.Exec(executionContext, upsertQuery, accountID, application, key, value); upsertError != nil {
				_ = transaction.Rollback()
				return fmt.Errorf(storeSettingsTemplateConstant, accountID, upsertError)
			}
		}
	}

	if commitError := transaction.Commit(); commitError != nil {
		return fmt.Errorf(storeSettingsTemplateConstant, accountID, commitError)
	}
	return nil
}
