package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an authenticated identity in the system.
// The online flag and the concurrent-conversation count are authoritative
// here; the presence tracker only keeps a transient mirror of both while the
// identity is connected.
type User struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"type:text;not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:text;not null" json:"-"`
	Role         Role   `gorm:"type:text;not null;default:'requester'" json:"role"`

	// IsOnline is flipped by the gateway on connect/disconnect.
	IsOnline bool `gorm:"not null;default:false" json:"is_online"`
	// CurrentChats counts live conversations; mutated only through
	// storage-level atomic updates, never read-modify-write.
	CurrentChats int `gorm:"not null;default:0" json:"current_chats"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates a new UUID when the ID is not set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// UserSummary is the shape pushed in presence snapshots and embedded in
// conversation views. LiveCount is only populated for responders.
type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	LiveCount int    `json:"live_count,omitempty"`
}

// Summary converts a User into its snapshot shape using the given live count.
func (u *User) Summary(liveCount int) UserSummary {
	return UserSummary{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		LiveCount: liveCount,
	}
}
