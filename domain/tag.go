package domain

import "time"

// Tag is a per-user label attached to tasks through a many-to-many
// association. Tag names are stored lowercased and unique per user.
type Tag struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
