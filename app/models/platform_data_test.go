package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFetchResult() *PlatformDataFetchResult {
	start := "2025-01-01"
	end := "2025-01-31"
	return &PlatformDataFetchResult{
		NumberOfGigs: 42,
		PeriodStart:  &start,
		PeriodEnd:    &end,
		Ratings: []Rating{
			{Identifier: "r-1", Value: 5, Min: 0, Max: 5, Successful: true},
			{Identifier: "r-2", Value: 3, Min: 0, Max: 5, Successful: false},
		},
		Reviews: []Review{
			{Identifier: "rev-1", RatingIdentifier: "r-1", Text: "great driver"},
		},
		Achievements: []Achievement{
			{Identifier: "a-1", Name: "100 rides"},
		},
		RawPayload: `{"source":"upstream"}`,
	}
}

func TestFetchResult_Summary(t *testing.T) {
	result := sampleFetchResult()

	summary := result.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, 4.0, summary.Value)
	assert.Equal(t, 0.0, summary.Min)
	assert.Equal(t, 5.0, summary.Max)
	assert.False(t, summary.Successful, "one unsuccessful rating taints the aggregate")

	empty := &PlatformDataFetchResult{}
	assert.Nil(t, empty.Summary())
}

func TestFetchResult_SuccessfulRatings(t *testing.T) {
	assert.Equal(t, 1, sampleFetchResult().SuccessfulRatings())
}

func TestApplyResult_RoundTrip(t *testing.T) {
	data := &PlatformData{UserID: 1, PlatformID: 2}
	require.NoError(t, data.ApplyResult(sampleFetchResult()))

	assert.Equal(t, 42, data.NumberOfGigs)
	assert.Equal(t, 2, data.NumberOfRatings)
	assert.Equal(t, 1, data.NumberOfSuccessfulRatings)
	require.NotNil(t, data.PeriodStart)
	assert.Equal(t, "2025-01-01", *data.PeriodStart)

	summary, err := data.AverageRating()
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 4.0, summary.Value)

	ratings, err := data.Ratings()
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, "r-1", ratings[0].Identifier)

	reviews, err := data.Reviews()
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "great driver", reviews[0].Text)

	achievements, err := data.Achievements()
	require.NoError(t, err)
	require.Len(t, achievements, 1)

	payloads, err := data.RawPayloads()
	require.NoError(t, err)
	require.Len(t, payloads, 1)
}

func TestApplyResult_OverwritesWhole(t *testing.T) {
	data := &PlatformData{UserID: 1, PlatformID: 2}
	require.NoError(t, data.ApplyResult(sampleFetchResult()))

	// A later fetch with fewer ratings replaces the collections entirely.
	require.NoError(t, data.ApplyResult(&PlatformDataFetchResult{NumberOfGigs: 1}))

	assert.Equal(t, 1, data.NumberOfGigs)
	assert.Equal(t, 0, data.NumberOfRatings)

	summary, err := data.AverageRating()
	require.NoError(t, err)
	assert.Nil(t, summary)

	ratings, err := data.Ratings()
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestApplyResult_RawPayloadRing(t *testing.T) {
	data := &PlatformData{UserID: 1, PlatformID: 2}

	for i := 0; i < MaxRawPayloads+3; i++ {
		result := &PlatformDataFetchResult{RawPayload: fmt.Sprintf("payload-%d", i)}
		require.NoError(t, data.ApplyResult(result))
	}

	payloads, err := data.RawPayloads()
	require.NoError(t, err)
	require.Len(t, payloads, MaxRawPayloads)
	assert.Equal(t, "payload-3", payloads[0], "oldest entries are evicted first")
	assert.Equal(t, "payload-7", payloads[MaxRawPayloads-1])
}

func TestApplyResult_EmptyRawPayloadKeepsRing(t *testing.T) {
	data := &PlatformData{UserID: 1, PlatformID: 2}
	require.NoError(t, data.ApplyResult(sampleFetchResult()))
	require.NoError(t, data.ApplyResult(&PlatformDataFetchResult{}))

	payloads, err := data.RawPayloads()
	require.NoError(t, err)
	assert.Len(t, payloads, 1, "an empty payload must not push a ring entry")
}
