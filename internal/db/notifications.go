package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/temirov/usermigration/internal/notify"
)

const (
	notificationColumnsConstant       = "id, event_type, account_id, author_id, target_account_id, job_id, migrators, archive_path, failure, created_at"
	insertNotificationQueryConstant   = "INSERT INTO notifications (" + notificationColumnsConstant + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	listNotificationsQueryConstant    = "SELECT " + notificationColumnsConstant + " FROM notifications WHERE account_id = ? ORDER BY created_at DESC, id DESC LIMIT ?"
	saveNotificationTemplateConstant  = "save notification %s: %w"
	listNotificationsTemplateConstant = "list notifications of account %s: %w"
	encodeMigratorsTemplateConstant   = "encode migrators of notification %s: %w"
	decodeMigratorsTemplateConstant   = "decode migrators of notification %s: %w"
)

// NotificationStore persists delivered notification events.
type NotificationStore struct {
	database *DB
}

// NewNotificationStore binds the notification store to the database.
func NewNotificationStore(database *DB) *NotificationStore {
	return &NotificationStore{database: database}
}

// Save stores the event.
func (store *NotificationStore) Save(executionContext context.Context, event notify.Event) error {
	migrators := event.Migrators
	if migrators == nil {
		migrators = []string{}
	}
	encodedMigrators, encodeError := json.Marshal(migrators)
	if encodeError != nil {
		return fmt.Errorf(encodeMigratorsTemplateConstant, event.ID, encodeError)
	}
	_, insertError := store.database.exec(executionContext, insertNotificationQueryConstant,
		event.ID, string(event.Type), event.AccountID, event.AuthorID, event.TargetAccountID, event.JobID,
		string(encodedMigrators), event.ArchivePath, event.Failure, event.CreatedAt.Unix())
	if insertError != nil {
		return fmt.Errorf(saveNotificationTemplateConstant, event.ID, insertError)
	}
	return nil
}

// List returns the newest events addressed to the account.
func (store *NotificationStore) List(executionContext context.Context, accountID string, limit int) ([]notify.Event, error) {
	rows, queryError := store.database.query(executionContext, listNotificationsQueryConstant, accountID, limit)
	if queryError != nil {
		return nil, fmt.Errorf(listNotificationsTemplateConstant, accountID, queryError)
	}
	defer func() { _ = rows.Close() }()

	var events []notify.Event
	for rows.Next() {
		var (
			event            notify.Event
			eventType        string
			encodedMigrators string
			createdAt        int64
		)
		scanError := rows.Scan(&event.ID, &eventType, &event.AccountID, &event.AuthorID, &event.TargetAccountID, &event.JobID,
			&encodedMigrators, &event.ArchivePath, &event.Failure, &createdAt)
		if scanError != nil {
			return nil, fmt.Errorf(listNotificationsTemplateConstant, accountID, scanError)
		}
		if decodeError := json.Unmarshal([]byte(encodedMigrators), &event.Migrators); decodeError != nil {
			return nil, fmt.Errorf(decodeMigratorsTemplateConstant, event.ID, decodeError)
		}
		event.Type = notify.EventType(eventType)
		event.CreatedAt = time.Unix(createdAt, 0).UTC()
		events = append(events, event)
	}
	if iterateError := rows.Err(); iterateError != nil {
		return nil, fmt.Errorf(listNotificationsTemplateConstant, accountID, iterateError)
	}
	return events, nil
}
