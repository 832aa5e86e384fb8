package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogEventAndGetEventsSince(t *testing.T) {
	owner := "events_owner@example.com"

	err := testStore.LogEvent(context.Background(), owner, EventFileUploaded, map[string]string{"name": "a.txt"})
	require.NoError(t, err)
	err = testStore.LogEvent(context.Background(), owner, EventFileDeleted, map[string]string{"name": "a.txt"})
	require.NoError(t, err)

	events, err := testStore.GetEventsSince(context.Background(), owner, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, EventFileUploaded, events[0].EventType)
	require.Equal(t, EventFileDeleted, events[1].EventType)
	require.Greater(t, events[1].ID, events[0].ID)

	// Paging from the first event ID returns only the second.
	tail, err := testStore.GetEventsSince(context.Background(), owner, events[0].ID)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, EventFileDeleted, tail[0].EventType)

	// Other owners see nothing.
	other, err := testStore.GetEventsSince(context.Background(), "events_other@example.com", 0)
	require.NoError(t, err)
	require.Len(t, other, 0)
}
