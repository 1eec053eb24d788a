package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func pollableConnection(intervalSeconds int) *PlatformConnection {
	return &PlatformConnection{
		ID:                  1,
		UserID:              1,
		PlatformID:          1,
		State:               StateConnected,
		AuthKind:            AuthKindOAuth,
		AccessToken:         "token",
		PollIntervalSeconds: intPtr(intervalSeconds),
	}
}

func TestRipe_NeverFetched(t *testing.T) {
	conn := pollableConnection(3600)
	assert.True(t, conn.Ripe(time.Now()))
}

func TestRipe_NoPollInterval(t *testing.T) {
	conn := pollableConnection(3600)
	conn.PollIntervalSeconds = nil
	assert.False(t, conn.Ripe(time.Now()))
}

func TestRipe_IntervalBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conn := pollableConnection(3600)

	started := now.Add(-2 * time.Hour)
	conn.LastAttemptStartedAt = &started

	completed := now.Add(-3599 * time.Second)
	conn.LastAttemptCompletedAt = &completed
	assert.False(t, conn.Ripe(now), "1 second short of the interval")

	completed = now.Add(-3600 * time.Second)
	conn.LastAttemptCompletedAt = &completed
	assert.True(t, conn.Ripe(now), "exactly one interval")

	completed = now.Add(-3601 * time.Second)
	conn.LastAttemptCompletedAt = &completed
	assert.True(t, conn.Ripe(now), "1 second past the interval")
}

func TestRipe_InFlightAttemptBlocks(t *testing.T) {
	now := time.Now()
	conn := pollableConnection(3600)

	conn.MarkAttemptStarted(now)
	assert.False(t, conn.Ripe(now.Add(time.Minute)),
		"a running attempt must block the next fetch")

	// A stalled attempt becomes eligible again after one full interval.
	assert.True(t, conn.Ripe(now.Add(3601*time.Second)))
}

func TestRipe_TombstonedNeverRipe(t *testing.T) {
	conn := pollableConnection(60)
	conn.SoftDelete(DeleteReasonNotAuthorized)
	assert.False(t, conn.Ripe(time.Now()))
}

func TestMarkAttemptStarted_ClearsCompletion(t *testing.T) {
	now := time.Now()
	conn := pollableConnection(3600)

	completed := now.Add(-time.Hour)
	conn.LastAttemptCompletedAt = &completed

	conn.MarkAttemptStarted(now)
	require.NotNil(t, conn.LastAttemptStartedAt)
	assert.Nil(t, conn.LastAttemptCompletedAt)
}

func TestMarkAttemptCompleted_AdvancesToSynced(t *testing.T) {
	now := time.Now()
	conn := pollableConnection(3600)
	conn.State = StateConnected

	conn.MarkAttemptCompleted(now, true)
	assert.Equal(t, StateSynced, conn.State)
	require.NotNil(t, conn.LastSuccessfulFetchAt)
	require.NotNil(t, conn.LastAttemptCompletedAt)
}

func TestMarkAttemptCompleted_FailureKeepsState(t *testing.T) {
	now := time.Now()
	conn := pollableConnection(3600)
	conn.State = StateConnected

	conn.MarkAttemptCompleted(now, false)
	assert.Equal(t, StateConnected, conn.State)
	assert.Nil(t, conn.LastSuccessfulFetchAt)
	require.NotNil(t, conn.LastAttemptCompletedAt)
}

func TestMarkAttemptCompleted_PendingStateNotAdvanced(t *testing.T) {
	conn := pollableConnection(3600)
	conn.State = StateAwaitingEmailVerification

	conn.MarkAttemptCompleted(time.Now(), true)
	assert.Equal(t, StateAwaitingEmailVerification, conn.State)
}

func TestSoftDelete(t *testing.T) {
	conn := pollableConnection(3600)

	conn.SoftDelete(DeleteReasonUserDidNotExist)
	assert.True(t, conn.IsDeleted)
	assert.Equal(t, StateRemoved, conn.State)
	require.NotNil(t, conn.DeleteReason)
	assert.Equal(t, DeleteReasonUserDidNotExist, *conn.DeleteReason)
}

func TestAddSubscriber_Idempotent(t *testing.T) {
	conn := pollableConnection(3600)

	assert.True(t, conn.AddSubscriber(10, DataClaimFull))
	assert.False(t, conn.AddSubscriber(10, DataClaimAggregated),
		"second subscription of the same app must be a no-op")
	assert.True(t, conn.AddSubscriber(11, DataClaimAggregated))

	require.Len(t, conn.Subscribers, 2)
	assert.Equal(t, DataClaimFull, conn.Subscribers[0].Claim,
		"re-subscribing must not change the original claim")
}

func TestAddSubscriber_InvalidClaimFallsBack(t *testing.T) {
	conn := pollableConnection(3600)

	conn.AddSubscriber(10, DataClaim("everything"))
	require.Len(t, conn.Subscribers, 1)
	assert.Equal(t, DefaultDataClaim, conn.Subscribers[0].Claim)
}

func TestSameIdentity(t *testing.T) {
	conn := pollableConnection(3600)
	conn.AuthKind = AuthKindEmail
	conn.Email = "driver@example.com"

	assert.True(t, conn.SameIdentity(AuthKindEmail, "driver@example.com", ""))
	assert.False(t, conn.SameIdentity(AuthKindEmail, "other@example.com", ""))
	assert.False(t, conn.SameIdentity(AuthKindOAuth, "", "some-token"),
		"different auth kind is never the same identity")

	conn.AuthKind = AuthKindOAuth
	conn.Email = ""
	assert.True(t, conn.SameIdentity(AuthKindOAuth, "", "any-token"))
	assert.False(t, conn.SameIdentity(AuthKindOAuth, "", ""))
}

func TestInitialState(t *testing.T) {
	assert.Equal(t, StateAwaitingOAuthAuthentication, InitialState(AuthKindOAuth, false))
	assert.Equal(t, StateAwaitingEmailVerification, InitialState(AuthKindEmail, false))
	assert.Equal(t, StateConnected, InitialState(AuthKindEmail, true))
}

func TestSubscriberClaim(t *testing.T) {
	conn := pollableConnection(3600)
	conn.AddSubscriber(10, DataClaimFull)

	assert.Equal(t, DataClaimFull, conn.SubscriberClaim(10))
	assert.Equal(t, DefaultDataClaim, conn.SubscriberClaim(99),
		"unknown apps fall back to the default claim")
}
