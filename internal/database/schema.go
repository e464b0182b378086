package database

import "time"

// User is a dashboard account.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	Email        string `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FullName     string
	Role         string `gorm:"size:20;not null;default:visitor"`
	IsActive     bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
}

// ChatMessage archives one committed chat bubble per row.
type ChatMessage struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"size:64;index;not null"`
	Content   string `gorm:"not null"`
	Role      string `gorm:"size:20;not null"`
	CreatedAt time.Time
}

// StoreEntry is one key/value slot of the conversation store.
type StoreEntry struct {
	Key       string `gorm:"column:store_key;primaryKey;size:255"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (StoreEntry) TableName() string {
	return "chat_store_entries"
}
