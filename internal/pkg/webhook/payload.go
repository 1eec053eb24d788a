package webhook

import (
	"time"

	"github.com/gigfolio/gigfolio/app/models"
)

// Reason is the machine-readable cause of a notification.
type Reason string

const (
	ReasonDataUpdate        Reason = "DataUpdate"
	ReasonConnectionDeleted Reason = "ConnectionDeleted"
)

// DataSection is the claim-scoped platform data part of a webhook payload.
// Reviews and achievements are present only for Full-claim subscribers.
type DataSection struct {
	NumberOfGigs                           int                   `json:"numberOfGigs"`
	NumberOfRatings                        int                   `json:"numberOfRatings"`
	NumberOfRatingsThatAreDeemedSuccessful int                   `json:"numberOfRatingsThatAreDeemedSuccessful"`
	PeriodStart                            *string               `json:"periodStart"`
	PeriodEnd                              *string               `json:"periodEnd"`
	AverageRating                          *models.RatingSummary `json:"averageRating"`
	Reviews                                []models.Review       `json:"reviews,omitempty"`
	Achievements                           []models.Achievement  `json:"achievements,omitempty"`
}

// Payload is the subscriber-facing webhook body.
type Payload struct {
	PlatformID              string       `json:"platformId"`
	PlatformName            string       `json:"platformName"`
	PlatformConnectionState string       `json:"platformConnectionState"`
	UserID                  string       `json:"userId"`
	Updated                 int64        `json:"updated"`
	Reason                  Reason       `json:"reason"`
	AppSecret               string       `json:"appSecret"`
	PlatformData            *DataSection `json:"platformData"`
}

// stateCarriesData reports whether the connection state admits a data section.
func stateCarriesData(state models.ConnectionState) bool {
	return state == models.StateConnected || state == models.StateSynced
}

// BuildPayload assembles the notification body for one subscriber. The data
// section is attached only for data updates in a connected state, scoped to
// the subscriber's claim level.
func BuildPayload(
	platform *models.Platform,
	user *models.User,
	state models.ConnectionState,
	reason Reason,
	appSecret string,
	claim models.DataClaim,
	data *models.PlatformData,
	now time.Time,
) (*Payload, error) {
	p := &Payload{
		PlatformID:              platform.ExternalID,
		PlatformName:            platform.Name,
		PlatformConnectionState: string(state),
		UserID:                  user.ExternalID,
		Updated:                 now.Unix(),
		Reason:                  reason,
		AppSecret:               appSecret,
	}

	if reason != ReasonDataUpdate || !stateCarriesData(state) || data == nil {
		return p, nil
	}

	avg, err := data.AverageRating()
	if err != nil {
		return nil, err
	}

	section := &DataSection{
		NumberOfGigs:                           data.NumberOfGigs,
		NumberOfRatings:                        data.NumberOfRatings,
		NumberOfRatingsThatAreDeemedSuccessful: data.NumberOfSuccessfulRatings,
		PeriodStart:                            data.PeriodStart,
		PeriodEnd:                              data.PeriodEnd,
		AverageRating:                          avg,
	}

	if claim == models.DataClaimFull {
		if section.Reviews, err = data.Reviews(); err != nil {
			return nil, err
		}
		if section.Achievements, err = data.Achievements(); err != nil {
			return nil, err
		}
	}

	p.PlatformData = section
	return p, nil
}
