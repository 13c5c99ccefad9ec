package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partyrounds/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedPublishPopFIFO(t *testing.T) {
	rdb := testutil.Redis(t)
	feed := NewFeed(rdb, "test_actions")
	ctx := context.Background()

	lobbyID := uuid.New()
	for i := 1; i <= 3; i++ {
		require.NoError(t, feed.Publish(ctx, ActionRecord{
			LobbyID:     lobbyID,
			ActionIndex: i,
			ActionType:  "answer_submitted",
			Timestamp:   time.Now().UnixMilli(),
		}))
	}

	for i := 1; i <= 3; i++ {
		rec, ok, err := feed.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, lobbyID, rec.LobbyID)
		assert.Equal(t, i, rec.ActionIndex)
	}

	_, ok, err := feed.Pop(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "empty queue times out without error")
}

func TestNewFeedDefaultsQueueName(t *testing.T) {
	f := NewFeed(nil, "")
	assert.Equal(t, DefaultQueueName, f.queue)
}
