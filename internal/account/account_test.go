package account_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/usermigration/internal/account"
)

func TestRecordRoundTrip(testInstance *testing.T) {
	lastLogin := time.Unix(1700000000, 0)
	testCases := []struct {
		name              string
		source            account.Account
		expectedLastLogin int64
	}{
		{
			name:              "active account",
			source:            account.Account{ID: "alice", DisplayName: "Alice", Enabled: true, LastLogin: lastLogin},
			expectedLastLogin: lastLogin.Unix(),
		},
		{
			name:   "never logged in",
			source: account.Account{ID: "bob", DisplayName: "Bob"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(testingInstance *testing.T) {
			record := account.NewRecord(testCase.source)
			require.Equal(testingInstance, testCase.source.ID, record.UID)
			require.Equal(testingInstance, testCase.expectedLastLogin, record.LastLogin)

			restored := record.ApplyTo(account.Account{ID: "target"})
			require.Equal(testingInstance, "target", restored.ID)
			require.Equal(testingInstance, testCase.source.DisplayName, restored.DisplayName)
			require.Equal(testingInstance, testCase.source.Enabled, restored.Enabled)
		})
	}
}

func TestSettingsAccessors(testInstance *testing.T) {
	settings := account.Settings{}
	settings.Set("notes", "color", "blue")
	settings.Set("calendar", "week_start", "monday")
	settings.Set("notes", "font", "serif")

	value, exists := settings.Value("notes", "color")
	require.True(testInstance, exists)
	require.Equal(testInstance, "blue", value)

	_, missing := settings.Value("mail", "signature")
	require.False(testInstance, missing)

	require.Equal(testInstance, []string{"calendar", "notes"}, settings.Applications())
	require.Equal(testInstance, 3, settings.Count())
}
