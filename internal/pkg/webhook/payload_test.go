package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigfolio/gigfolio/app/models"
)

func payloadFixtures(t *testing.T) (*models.Platform, *models.User, *models.PlatformData) {
	t.Helper()

	platform := &models.Platform{
		ExternalID:    "4b4b1c9a-2f3d-4d65-9a3f-111111111111",
		Name:          "RideShareX",
		AuthMechanism: models.AuthMechanismOAuth,
	}
	user := &models.User{
		ExternalID: "9e3d2a60-77aa-4f09-8f52-222222222222",
		Name:       "Sam Driver",
		Email:      "sam@example.com",
	}

	data := &models.PlatformData{UserID: 1, PlatformID: 1}
	require.NoError(t, data.ApplyResult(&models.PlatformDataFetchResult{
		NumberOfGigs: 10,
		Ratings: []models.Rating{
			{Identifier: "r-1", Value: 5, Min: 0, Max: 5, Successful: true},
		},
		Reviews: []models.Review{
			{Identifier: "rev-1", RatingIdentifier: "r-1", Text: "on time"},
		},
		Achievements: []models.Achievement{
			{Identifier: "a-1", Name: "Early bird"},
		},
	}))

	return platform, user, data
}

func TestBuildPayload_AggregatedClaimOmitsDetails(t *testing.T) {
	platform, user, data := payloadFixtures(t)

	payload, err := BuildPayload(platform, user, models.StateSynced, ReasonDataUpdate,
		"secret-1", models.DataClaimAggregated, data, time.Now())
	require.NoError(t, err)

	require.NotNil(t, payload.PlatformData)
	assert.Equal(t, 10, payload.PlatformData.NumberOfGigs)
	assert.Equal(t, 1, payload.PlatformData.NumberOfRatings)
	assert.Equal(t, 1, payload.PlatformData.NumberOfRatingsThatAreDeemedSuccessful)
	require.NotNil(t, payload.PlatformData.AverageRating)

	assert.Nil(t, payload.PlatformData.Reviews, "aggregated claim must never carry reviews")
	assert.Nil(t, payload.PlatformData.Achievements, "aggregated claim must never carry achievements")

	// The omitted sections must not even appear as JSON keys.
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(body), `"reviews"`)
	assert.NotContains(t, string(body), `"achievements"`)
}

func TestBuildPayload_FullClaimIncludesDetails(t *testing.T) {
	platform, user, data := payloadFixtures(t)

	payload, err := BuildPayload(platform, user, models.StateSynced, ReasonDataUpdate,
		"secret-1", models.DataClaimFull, data, time.Now())
	require.NoError(t, err)

	require.NotNil(t, payload.PlatformData)
	require.Len(t, payload.PlatformData.Reviews, 1)
	assert.Equal(t, "on time", payload.PlatformData.Reviews[0].Text)
	require.Len(t, payload.PlatformData.Achievements, 1)
}

func TestBuildPayload_DeletionCarriesNoData(t *testing.T) {
	platform, user, data := payloadFixtures(t)

	payload, err := BuildPayload(platform, user, models.StateRemoved, ReasonConnectionDeleted,
		"secret-1", models.DataClaimFull, data, time.Now())
	require.NoError(t, err)

	assert.Nil(t, payload.PlatformData)
	assert.Equal(t, ReasonConnectionDeleted, payload.Reason)
	assert.Equal(t, string(models.StateRemoved), payload.PlatformConnectionState)
}

func TestBuildPayload_PendingStateCarriesNoData(t *testing.T) {
	platform, user, data := payloadFixtures(t)

	payload, err := BuildPayload(platform, user, models.StateAwaitingOAuthAuthentication,
		ReasonDataUpdate, "secret-1", models.DataClaimFull, data, time.Now())
	require.NoError(t, err)

	assert.Nil(t, payload.PlatformData)
}

func TestBuildPayload_Envelope(t *testing.T) {
	platform, user, data := payloadFixtures(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	payload, err := BuildPayload(platform, user, models.StateSynced, ReasonDataUpdate,
		"secret-1", models.DataClaimAggregated, data, now)
	require.NoError(t, err)

	assert.Equal(t, platform.ExternalID, payload.PlatformID)
	assert.Equal(t, "RideShareX", payload.PlatformName)
	assert.Equal(t, user.ExternalID, payload.UserID)
	assert.Equal(t, now.Unix(), payload.Updated)
	assert.Equal(t, "secret-1", payload.AppSecret)
}
