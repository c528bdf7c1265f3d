package models

import "time"

// DefaultReminderLeadMinutes is used until a user picks their own lead time.
const DefaultReminderLeadMinutes = 10

// User represents a Telegram user on the walk roster
type User struct {
	ID                  int64     `json:"id" db:"id"`
	FirstName           string    `json:"first_name" db:"first_name"`
	Username            string    `json:"username" db:"username"`
	ReminderLeadMinutes int       `json:"reminder_lead_minutes" db:"reminder_lead_minutes"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the best display name for the user
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Anonymous"
}

// ReminderLead returns the user's reminder lead time as a duration
func (u *User) ReminderLead() time.Duration {
	if u.ReminderLeadMinutes <= 0 {
		return DefaultReminderLeadMinutes * time.Minute
	}
	return time.Duration(u.ReminderLeadMinutes) * time.Minute
}
