package models

import "time"

// User is the server-owned profile returned by the identity endpoint. The
// client treats it as a cached snapshot and never edits it.
type User struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name,omitempty"`
	Role       string     `json:"role,omitempty"`
	Status     string     `json:"status,omitempty"`
	IsActive   bool       `json:"is_active"`
	IsAdmin    bool       `json:"is_admin"`
	IsVerified bool       `json:"is_verified"`
	IsPremium  bool       `json:"is_premium"`
	CreatedAt  time.Time  `json:"created_at"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

// Clone returns a copy that callers may keep without aliasing the cached
// snapshot.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}
