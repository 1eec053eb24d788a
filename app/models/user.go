package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// User is the aggregate root owning all platform connections of one end user.
// ExternalID is the GUID exposed to platforms and subscriber apps; the numeric
// primary key never leaves the service.
type User struct {
	ID          uint                 `gorm:"primaryKey" json:"id"`
	ExternalID  string               `gorm:"uniqueIndex;type:varchar(36)" json:"external_id" validate:"required,uuid4"`
	Name        string               `gorm:"type:varchar(150)" json:"name" validate:"required,min=1,max=150"`
	Email       string               `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Connections []PlatformConnection `gorm:"foreignKey:UserID" json:"connections,omitempty"`
	CreatedAt   time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateUser builds a new user with a fresh external GUID.
func CreateUser(name string, email string) (*User, error) {
	u := &User{
		ExternalID: uuid.New().String(),
		Name:       name,
		Email:      email,
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// ConnectionFor returns the user's connection to the given platform, deleted
// or not, or nil when none exists.
func (u *User) ConnectionFor(platformID uint) *PlatformConnection {
	for i := range u.Connections {
		if u.Connections[i].PlatformID == platformID {
			return &u.Connections[i]
		}
	}
	return nil
}

// ActiveConnections returns the user's connections that are not tombstoned.
func (u *User) ActiveConnections() []*PlatformConnection {
	var active []*PlatformConnection
	for i := range u.Connections {
		if !u.Connections[i].IsDeleted {
			active = append(active, &u.Connections[i])
		}
	}
	return active
}
