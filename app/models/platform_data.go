package models

import (
	"encoding/json"
	"time"
)

// MaxRawPayloads bounds the ring of retained raw upstream payloads.
const MaxRawPayloads = 5

// Rating is one rating received by the user on a platform.
type Rating struct {
	Identifier string  `json:"identifier"`
	Value      float64 `json:"value"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Successful bool    `json:"isSuccessful"`
}

// Review is one written review, linked to its rating by rating identifier.
type Review struct {
	Identifier       string `json:"identifier"`
	RatingIdentifier string `json:"ratingIdentifier,omitempty"`
	Text             string `json:"text"`
	Reviewer         string `json:"reviewer,omitempty"`
	Date             string `json:"date,omitempty"`
}

// Achievement is a badge or milestone granted by the platform.
type Achievement struct {
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// RatingSummary is the aggregate view of a rating set.
type RatingSummary struct {
	Value      float64 `json:"value"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Successful bool    `json:"isSuccessful"`
}

// PlatformDataFetchResult is what a platform fetcher hands back for one cycle.
type PlatformDataFetchResult struct {
	NumberOfGigs int           `json:"numberOfGigs"`
	PeriodStart  *string       `json:"periodStart,omitempty"`
	PeriodEnd    *string       `json:"periodEnd,omitempty"`
	Ratings      []Rating      `json:"ratings"`
	Reviews      []Review      `json:"reviews"`
	Achievements []Achievement `json:"achievements"`
	RawPayload   string        `json:"rawPayload,omitempty"`
}

// Summary aggregates the result's ratings. Returns nil when there are none.
func (r *PlatformDataFetchResult) Summary() *RatingSummary {
	if len(r.Ratings) == 0 {
		return nil
	}
	s := &RatingSummary{
		Min: r.Ratings[0].Min,
		Max: r.Ratings[0].Max,
	}
	var sum float64
	allSuccessful := true
	for _, rating := range r.Ratings {
		sum += rating.Value
		if !rating.Successful {
			allSuccessful = false
		}
	}
	s.Value = sum / float64(len(r.Ratings))
	s.Successful = allSuccessful
	return s
}

// SuccessfulRatings counts ratings the platform deems successful.
func (r *PlatformDataFetchResult) SuccessfulRatings() int {
	n := 0
	for _, rating := range r.Ratings {
		if rating.Successful {
			n++
		}
	}
	return n
}

// PlatformData is the most recent fetched snapshot per (user, platform).
// Collections are stored as JSON columns and rewritten whole on each fetch.
type PlatformData struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	UserID     uint `gorm:"index;uniqueIndex:data_user_platform" json:"user_id"`
	PlatformID uint `gorm:"uniqueIndex:data_user_platform" json:"platform_id"`

	NumberOfGigs              int     `gorm:"default:0" json:"number_of_gigs"`
	NumberOfRatings           int     `gorm:"default:0" json:"number_of_ratings"`
	NumberOfSuccessfulRatings int     `gorm:"default:0" json:"number_of_successful_ratings"`
	PeriodStart               *string `gorm:"type:varchar(10);default:null" json:"period_start,omitempty"`
	PeriodEnd                 *string `gorm:"type:varchar(10);default:null" json:"period_end,omitempty"`

	AverageRatingJSON []byte `gorm:"type:json" json:"-"`
	RatingsJSON       []byte `gorm:"type:json" json:"-"`
	ReviewsJSON       []byte `gorm:"type:json" json:"-"`
	AchievementsJSON  []byte `gorm:"type:json" json:"-"`
	RawPayloadsJSON   []byte `gorm:"type:json" json:"-"`

	FetchedAt time.Time `gorm:"autoUpdateTime" json:"fetched_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ApplyResult overwrites the snapshot with a fetch result and pushes the raw
// payload into the bounded ring, evicting the oldest entry beyond the cap.
func (d *PlatformData) ApplyResult(result *PlatformDataFetchResult) error {
	d.NumberOfGigs = result.NumberOfGigs
	d.NumberOfRatings = len(result.Ratings)
	d.NumberOfSuccessfulRatings = result.SuccessfulRatings()
	d.PeriodStart = result.PeriodStart
	d.PeriodEnd = result.PeriodEnd

	var err error
	if summary := result.Summary(); summary != nil {
		if d.AverageRatingJSON, err = json.Marshal(summary); err != nil {
			return err
		}
	} else {
		d.AverageRatingJSON = nil
	}
	if d.RatingsJSON, err = json.Marshal(result.Ratings); err != nil {
		return err
	}
	if d.ReviewsJSON, err = json.Marshal(result.Reviews); err != nil {
		return err
	}
	if d.AchievementsJSON, err = json.Marshal(result.Achievements); err != nil {
		return err
	}

	if result.RawPayload != "" {
		ring, rerr := d.RawPayloads()
		if rerr != nil {
			ring = nil
		}
		ring = append(ring, result.RawPayload)
		if len(ring) > MaxRawPayloads {
			ring = ring[len(ring)-MaxRawPayloads:]
		}
		if d.RawPayloadsJSON, err = json.Marshal(ring); err != nil {
			return err
		}
	}

	return nil
}

// AverageRating decodes the stored rating summary, nil when absent.
func (d *PlatformData) AverageRating() (*RatingSummary, error) {
	if len(d.AverageRatingJSON) == 0 {
		return nil, nil
	}
	var s RatingSummary
	if err := json.Unmarshal(d.AverageRatingJSON, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Ratings decodes the stored rating list.
func (d *PlatformData) Ratings() ([]Rating, error) {
	if len(d.RatingsJSON) == 0 {
		return nil, nil
	}
	var ratings []Rating
	if err := json.Unmarshal(d.RatingsJSON, &ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}

// Reviews decodes the stored review list.
func (d *PlatformData) Reviews() ([]Review, error) {
	if len(d.ReviewsJSON) == 0 {
		return nil, nil
	}
	var reviews []Review
	if err := json.Unmarshal(d.ReviewsJSON, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Achievements decodes the stored achievement list.
func (d *PlatformData) Achievements() ([]Achievement, error) {
	if len(d.AchievementsJSON) == 0 {
		return nil, nil
	}
	var achievements []Achievement
	if err := json.Unmarshal(d.AchievementsJSON, &achievements); err != nil {
		return nil, err
	}
	return achievements, nil
}

// RawPayloads decodes the bounded ring of recent raw upstream payloads.
func (d *PlatformData) RawPayloads() ([]string, error) {
	if len(d.RawPayloadsJSON) == 0 {
		return nil, nil
	}
	var payloads []string
	if err := json.Unmarshal(d.RawPayloadsJSON, &payloads); err != nil {
		return nil, err
	}
	return payloads, nil
}
