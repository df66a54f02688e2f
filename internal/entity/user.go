package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Avatar is a Cloudinary asset reference.
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type User struct {
	ID           uuid.UUID                      `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string                         `gorm:"size:100;not null" json:"name"`
	Email        string                         `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string                         `gorm:"size:255;not null" json:"-"`
	Role         string                         `gorm:"size:20;not null;default:user" json:"role"`
	IsVerified   bool                           `gorm:"default:false" json:"is_verified"`
	Avatar       datatypes.JSONType[Avatar]     `json:"avatar"`
	Courses      datatypes.JSONSlice[uuid.UUID] `json:"courses"`
	CreatedAt    time.Time                      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time                      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Owns reports whether the user's purchased-course list contains courseID.
func (u *User) Owns(courseID uuid.UUID) bool {
	for _, id := range u.Courses {
		if id == courseID {
			return true
		}
	}
	return false
}

// Snapshot returns the denormalized author copy embedded in questions,
// reviews and replies. It is a point-in-time value and is never synchronized
// with later profile edits.
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.Avatar.Data().URL,
	}
}

type UserSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}
