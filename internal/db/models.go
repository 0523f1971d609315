package db

import (
	"time"
)

type SiteStatus string

const (
	StatusPending    SiteStatus = "pending"
	StatusInstalling SiteStatus = "installing"
	StatusActive     SiteStatus = "active"
	StatusFailed     SiteStatus = "failed"
	StatusDeleted    SiteStatus = "deleted"
)

// siteTransitions is the full lifecycle: a status only ever moves forward.
// Sites in pending or installing cannot be deleted until their provisioning
// run settles; failed sites stay deletable so they don't pin the user quota.
var siteTransitions = map[SiteStatus][]SiteStatus{
	StatusPending:    {StatusInstalling},
	StatusInstalling: {StatusActive, StatusFailed},
	StatusActive:     {StatusDeleted},
	StatusFailed:     {StatusDeleted},
	StatusDeleted:    {},
}

func (s SiteStatus) Valid() bool {
	_, ok := siteTransitions[s]
	return ok
}

// CanTransition reports whether moving from s to next is a legal step in the
// site lifecycle.
func (s SiteStatus) CanTransition(next SiteStatus) bool {
	for _, allowed := range siteTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Site struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"-" db:"user_id"`
	Domain     string     `json:"domain" db:"domain"`
	Title      string     `json:"title" db:"title"`
	AdminEmail string     `json:"admin_email" db:"admin_email"`
	AdminUser  string     `json:"admin_user" db:"admin_user"`
	DBName     string     `json:"-" db:"db_name"`
	DBUser     string     `json:"-" db:"db_user"`
	DBPassword string     `json:"-" db:"db_password"`
	Status     SiteStatus `json:"status" db:"status"`
	InstallLog *string    `json:"install_log,omitempty" db:"install_log"`
	ErrorLog   *string    `json:"error_log,omitempty" db:"error_log"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
