package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gigfolio/gigfolio/app/models"
	"github.com/gigfolio/gigfolio/internal/pkg/jobqueue"
)

type fakeUserRepo struct{}

func (f *fakeUserRepo) Create(*models.User) error { return nil }
func (f *fakeUserRepo) GetByID(uint) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeUserRepo) GetByExternalID(string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeUserRepo) GetWithConnections(uint) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeUserRepo) Update(*models.User) error            { return nil }
func (f *fakeUserRepo) List(int, int) ([]models.User, error) { return nil, nil }
func (f *fakeUserRepo) Count() (int64, error)                { return 0, nil }

type fakeConnRepo struct {
	conn  *models.PlatformConnection
	saved []*models.PlatformConnection
}

func (f *fakeConnRepo) GetByID(id uint) (*models.PlatformConnection, error) {
	if f.conn != nil && f.conn.ID == id {
		return f.conn, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConnRepo) GetByUserAndPlatform(userID, platformID uint) (*models.PlatformConnection, error) {
	if f.conn != nil && f.conn.UserID == userID && f.conn.PlatformID == platformID {
		return f.conn, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConnRepo) Save(conn *models.PlatformConnection) error {
	f.conn = conn
	f.saved = append(f.saved, conn)
	return nil
}

func (f *fakeConnRepo) SaveBatch([]*models.PlatformConnection) error { return nil }
func (f *fakeConnRepo) HardDelete(*models.PlatformConnection) error  { return nil }
func (f *fakeConnRepo) MinPollInterval() (*int, error)               { return nil, nil }
func (f *fakeConnRepo) CandidateUserIDs(time.Time) ([]uint, error)   { return nil, nil }

type fakeEnqueuer struct {
	calls    []models.DeleteReason
	hard     []bool
	notified []jobqueue.NotifyAppJobPayload
}

func (f *fakeEnqueuer) EnqueueRemoveConnectionJob(userID, platformID uint, hard bool, reason models.DeleteReason) (*jobqueue.Job, error) {
	f.calls = append(f.calls, reason)
	f.hard = append(f.hard, hard)
	return &jobqueue.Job{ID: "job"}, nil
}

func (f *fakeEnqueuer) EnqueueNotifyAppJob(payload jobqueue.NotifyAppJobPayload) (*jobqueue.Job, error) {
	f.notified = append(f.notified, payload)
	return &jobqueue.Job{ID: "notify-job"}, nil
}

func testPlatform() *models.Platform {
	return &models.Platform{
		ID:            1,
		ExternalID:    "3f1d7e5a-9b3c-4c11-8c5e-333333333333",
		Name:          "RideShareX",
		AuthMechanism: models.AuthMechanismOAuthOrEmail,
	}
}

func testUser() *models.User {
	return &models.User{ID: 1, ExternalID: "u-1", Name: "Sam", Email: "sam@example.com"}
}

func newTestService(conns *fakeConnRepo, enq *fakeEnqueuer) *Service {
	return NewService(&fakeUserRepo{}, conns, enq)
}

func TestConnect_CreatesOAuthConnection(t *testing.T) {
	conns := &fakeConnRepo{}
	svc := newTestService(conns, &fakeEnqueuer{})

	conn, err := svc.Connect(testUser(), testPlatform(), ConnectRequest{
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-1",
		AppID:       10,
		Claim:       models.DataClaimFull,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StateConnected, conn.State, "handed-over tokens skip the pending state")
	assert.Equal(t, "token-1", conn.AccessToken)
	require.Len(t, conn.Subscribers, 1)
	assert.Equal(t, uint(10), conn.Subscribers[0].AppID)
	assert.Equal(t, models.DataClaimFull, conn.Subscribers[0].Claim)
	require.Len(t, conns.saved, 1)
}

func TestConnect_WithoutTokenAwaitsOAuth(t *testing.T) {
	svc := newTestService(&fakeConnRepo{}, &fakeEnqueuer{})

	conn, err := svc.Connect(testUser(), testPlatform(), ConnectRequest{
		AuthKind: models.AuthKindOAuth,
		AppID:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingOAuthAuthentication, conn.State)
}

func TestConnect_SameIdentityIsIdempotentSubscribe(t *testing.T) {
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:       models.StateSynced,
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-1",
		Subscribers: []models.NotificationInfo{{ConnectionID: 5, AppID: 10, Claim: models.DataClaimFull}},
	}
	conns := &fakeConnRepo{conn: existing}
	svc := newTestService(conns, &fakeEnqueuer{})

	conn, err := svc.Connect(testUser(), testPlatform(), ConnectRequest{
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "rotated-token",
		AppID:       11,
		Claim:       models.DataClaimAggregated,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StateSynced, conn.State, "state must survive a re-connect of the same account")
	require.Len(t, conn.Subscribers, 2)
	assert.Equal(t, models.DataClaimFull, conn.Subscribers[0].Claim)
}

func TestConnect_SecondSubscribeBySameAppIsNoOp(t *testing.T) {
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:       models.StateSynced,
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-1",
		Subscribers: []models.NotificationInfo{{ConnectionID: 5, AppID: 10, Claim: models.DataClaimFull}},
	}
	svc := newTestService(&fakeConnRepo{conn: existing}, &fakeEnqueuer{})

	conn, err := svc.Connect(testUser(), testPlatform(), ConnectRequest{
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-1",
		AppID:       10,
	})
	require.NoError(t, err)
	require.Len(t, conn.Subscribers, 1)
}

func TestConnect_DifferentIdentityReplacesButKeepsSubscribers(t *testing.T) {
	lastFetch := time.Now().Add(-time.Hour)
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:                 models.StateSynced,
		AuthKind:              models.AuthKindEmail,
		Email:                 "old@example.com",
		EmailVerified:         true,
		LastSuccessfulFetchAt: &lastFetch,
		Subscribers:           []models.NotificationInfo{{ConnectionID: 5, AppID: 10, Claim: models.DataClaimFull}},
	}
	svc := newTestService(&fakeConnRepo{conn: existing}, &fakeEnqueuer{})

	conn, err := svc.Connect(testUser(), testPlatform(), ConnectRequest{
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-2",
		AppID:       11,
	})
	require.NoError(t, err)

	assert.Equal(t, models.AuthKindOAuth, conn.AuthKind)
	assert.Equal(t, "token-2", conn.AccessToken)
	assert.Empty(t, conn.Email, "old credentials must be wiped")
	assert.Nil(t, conn.LastSuccessfulFetchAt, "fetch markers restart with the new account")

	require.Len(t, conn.Subscribers, 2, "existing subscribers must survive the replacement")
	assert.Equal(t, uint(10), conn.Subscribers[0].AppID)
	assert.Equal(t, uint(11), conn.Subscribers[1].AppID)
}

func TestConnect_RevivesTombstonedConnection(t *testing.T) {
	reason := models.DeleteReasonNotAuthorized
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:        models.StateRemoved,
		AuthKind:     models.AuthKindOAuth,
		IsDeleted:    true,
		DeleteReason: &reason,
	}
	svc := newTestService(&fakeConnRepo{conn: existing}, &fakeEnqueuer{})

	conn, err := svc.Connect(testUser(), testPlatform(), ConnectRequest{
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-3",
		AppID:       10,
	})
	require.NoError(t, err)

	assert.False(t, conn.IsDeleted)
	assert.Nil(t, conn.DeleteReason)
	assert.Equal(t, models.StateConnected, conn.State)
}

func TestConnect_RejectsUnsupportedAuthKind(t *testing.T) {
	platform := testPlatform()
	platform.AuthMechanism = models.AuthMechanismOAuth

	svc := newTestService(&fakeConnRepo{}, &fakeEnqueuer{})

	_, err := svc.Connect(testUser(), platform, ConnectRequest{
		AuthKind: models.AuthKindEmail,
		Email:    "sam@example.com",
		AppID:    10,
	})
	assert.ErrorIs(t, err, ErrAuthKindNotSupported)
}

func TestConnect_PollIntervalFallsBackToPlatformDefault(t *testing.T) {
	platform := testPlatform()
	def := 7200
	platform.DefaultPollIntervalSeconds = &def

	svc := newTestService(&fakeConnRepo{}, &fakeEnqueuer{})

	conn, err := svc.Connect(testUser(), platform, ConnectRequest{
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-1",
		AppID:       10,
	})
	require.NoError(t, err)
	require.NotNil(t, conn.PollIntervalSeconds)
	assert.Equal(t, 7200, *conn.PollIntervalSeconds)
}

func TestCompleteOAuth(t *testing.T) {
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:    models.StateAwaitingOAuthAuthentication,
		AuthKind: models.AuthKindOAuth,
	}
	conns := &fakeConnRepo{conn: existing}
	svc := newTestService(conns, &fakeEnqueuer{})

	conn, err := svc.CompleteOAuth(1, 1, "token-x", "refresh-x", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateConnected, conn.State)
	assert.Equal(t, "token-x", conn.AccessToken)
	assert.Equal(t, "refresh-x", conn.RefreshToken)
}

func TestCompleteOAuth_WrongState(t *testing.T) {
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:    models.StateSynced,
		AuthKind: models.AuthKindOAuth,
	}
	svc := newTestService(&fakeConnRepo{conn: existing}, &fakeEnqueuer{})

	_, err := svc.CompleteOAuth(1, 1, "token-x", "", nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteOAuth_MissingConnection(t *testing.T) {
	svc := newTestService(&fakeConnRepo{}, &fakeEnqueuer{})

	_, err := svc.CompleteOAuth(1, 1, "token-x", "", nil)
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestRemove_EnqueuesTeardown(t *testing.T) {
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:    models.StateSynced,
		AuthKind: models.AuthKindOAuth,
	}
	enq := &fakeEnqueuer{}
	svc := newTestService(&fakeConnRepo{conn: existing}, enq)

	require.NoError(t, svc.Remove(1, 1, true))
	require.Len(t, enq.calls, 1)
	assert.Equal(t, models.DeleteReasonUserRequest, enq.calls[0])
	assert.True(t, enq.hard[0])
}

func TestRemove_MissingConnection(t *testing.T) {
	enq := &fakeEnqueuer{}
	svc := newTestService(&fakeConnRepo{}, enq)

	assert.ErrorIs(t, svc.Remove(1, 1, false), ErrConnectionNotFound)
	assert.Empty(t, enq.calls)
}

func TestConnect_NewConnectionNotifiesSubscriber(t *testing.T) {
	enq := &fakeEnqueuer{}
	svc := newTestService(&fakeConnRepo{}, enq)

	conn, err := svc.Connect(testUser(), testPlatform(), ConnectRequest{
		AuthKind: models.AuthKindOAuth,
		AppID:    10,
		Claim:    models.DataClaimFull,
	})
	require.NoError(t, err)

	require.Len(t, enq.notified, 1, "the connecting app must learn the initial state")
	assert.Equal(t, uint(10), enq.notified[0].AppID)
	assert.Equal(t, string(models.StateAwaitingOAuthAuthentication), enq.notified[0].State)
	assert.Equal(t, string(models.DataClaimFull), enq.notified[0].Claim)
	assert.Equal(t, conn.UserID, enq.notified[0].UserID)
}

func TestConnect_ResubscribeNotifiesOnlyRequestingApp(t *testing.T) {
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:       models.StateSynced,
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-1",
		Subscribers: []models.NotificationInfo{{ConnectionID: 5, AppID: 10, Claim: models.DataClaimFull}},
	}
	enq := &fakeEnqueuer{}
	svc := newTestService(&fakeConnRepo{conn: existing}, enq)

	_, err := svc.Connect(testUser(), testPlatform(), ConnectRequest{
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-1",
		AppID:       11,
		Claim:       models.DataClaimAggregated,
	})
	require.NoError(t, err)

	require.Len(t, enq.notified, 1, "the new subscriber catches up; existing apps stay quiet")
	assert.Equal(t, uint(11), enq.notified[0].AppID)
	assert.Equal(t, string(models.StateSynced), enq.notified[0].State)
	assert.Equal(t, string(models.DataClaimAggregated), enq.notified[0].Claim)
}

func TestConnect_ReplacementNotifiesAllSubscribers(t *testing.T) {
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:         models.StateSynced,
		AuthKind:      models.AuthKindEmail,
		Email:         "old@example.com",
		EmailVerified: true,
		Subscribers:   []models.NotificationInfo{{ConnectionID: 5, AppID: 10, Claim: models.DataClaimFull}},
	}
	enq := &fakeEnqueuer{}
	svc := newTestService(&fakeConnRepo{conn: existing}, enq)

	_, err := svc.Connect(testUser(), testPlatform(), ConnectRequest{
		AuthKind:    models.AuthKindOAuth,
		AccessToken: "token-2",
		AppID:       11,
	})
	require.NoError(t, err)

	require.Len(t, enq.notified, 2, "every kept subscriber learns about the replacement")
	assert.Equal(t, uint(10), enq.notified[0].AppID)
	assert.Equal(t, string(models.DataClaimFull), enq.notified[0].Claim)
	assert.Equal(t, uint(11), enq.notified[1].AppID)
}

func TestCompleteOAuth_NotifiesSubscribers(t *testing.T) {
	existing := &models.PlatformConnection{
		ID: 5, UserID: 1, PlatformID: 1,
		State:    models.StateAwaitingOAuthAuthentication,
		AuthKind: models.AuthKindOAuth,
		Subscribers: []models.NotificationInfo{
			{ConnectionID: 5, AppID: 10, Claim: models.DataClaimFull},
			{ConnectionID: 5, AppID: 11, Claim: models.DataClaimAggregated},
		},
	}
	enq := &fakeEnqueuer{}
	svc := newTestService(&fakeConnRepo{conn: existing}, enq)

	_, err := svc.CompleteOAuth(1, 1, "token-x", "", nil)
	require.NoError(t, err)

	require.Len(t, enq.notified, 2)
	for _, n := range enq.notified {
		assert.Equal(t, string(models.StateConnected), n.State)
	}
	assert.Equal(t, uint(10), enq.notified[0].AppID)
	assert.Equal(t, uint(11), enq.notified[1].AppID)
}
