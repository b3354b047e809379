package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a live 1:1 session between exactly two participants.
// It is never deleted; ending a conversation only flips IsActive, and that
// flip is one-way.
type Conversation struct {
	ID string `gorm:"primaryKey" json:"id"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants"`

	IsActive  bool       `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// BeforeCreate generates a new UUID when the ID is not set.
func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// HasParticipant reports whether the identity is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// ParticipantFor returns the participant record for the identity, if any.
func (c *Conversation) ParticipantFor(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// Participant binds one identity to a conversation. Role and the anonymity
// flag are fixed at conversation-creation time; the anonymity flag is only
// meaningful for requesters.
type Participant struct {
	ID             uint   `gorm:"primaryKey" json:"-"`
	ConversationID string `gorm:"type:uuid;not null;index" json:"-"`
	UserID         string `gorm:"type:uuid;not null;index" json:"user_id"`
	Role           Role   `gorm:"type:text;not null" json:"role"`
	IsAnonymous    bool   `gorm:"not null;default:false" json:"is_anonymous"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}
