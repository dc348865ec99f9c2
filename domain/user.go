package domain

import "time"

// User represents an authenticated identity. Authentication itself lives at
// the boundary; the sync core only needs the owning user id of each task.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == "active"
}
