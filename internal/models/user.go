package models

import "time"

// User is the authenticated principal. Rows are owned by the auth subsystem;
// session code only ever reads id and username.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
