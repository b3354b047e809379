package models

import "time"

// Message is one immutable entry in a conversation's append-only sequence.
// Ordering within a conversation is (CreatedAt, ID); the serial primary key
// breaks timestamp ties in insertion order.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID string    `gorm:"type:uuid;not null;index:idx_conv_msg" json:"conversation_id"`
	SenderID       string    `gorm:"type:uuid;not null;index:idx_conv_msg" json:"sender_id"`
	SenderRole     Role      `gorm:"type:text;not null" json:"sender_role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
