package database

import "time"

// Room represents a case room grouping messages and live connections
type Room struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(255)"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Archived  bool      `json:"archived" gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message represents one persisted chat or assistant message
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(255)"`
	RoomID    string    `json:"room_id" gorm:"type:varchar(255);not null;index"`
	Sender    string    `json:"sender" gorm:"type:varchar(255)"`
	Role      string    `json:"role" gorm:"type:varchar(20)"` // "user" or "assistant"
	Content   string    `json:"content" gorm:"type:text"`
	Backend   string    `json:"backend,omitempty" gorm:"type:varchar(100)"` // which provider produced an assistant message
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}
