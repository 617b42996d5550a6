// Package profile holds the user profile data model and its classification
// rules. A profile as fetched from the store may be complete, partially
// filled in, or structurally broken; everything downstream branches on the
// classification, never on raw field checks.
package profile

import (
	"time"
)

// DateLayout is the calendar-date format used on the profile store wire
// for birth dates and entry week starts.
const DateLayout = "2006-01-02"

// Tag categorizes entries. Tags are matched to entries by name.
type Tag struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created"`
	Name      string    `json:"name" validate:"required"`
	Color     string    `json:"color"`
}

// Entry is a single calendar-week annotation. Start identifies the week
// bucket; there is at most one entry per week per user.
type Entry struct {
	Start string   `json:"start" validate:"required,datetime=2006-01-02"`
	Note  string   `json:"note"`
	Tags  []string `json:"tags"`
}

// Record is a normalized user profile. Zero values mark fields the user
// has not filled in yet; classification decides whether that matters.
type Record struct {
	UID       string
	CreatedAt time.Time
	Name      string
	Birth     time.Time
	ExpYears  int
	Email     string
}

// Payload is the raw profile document as returned by the profile store.
// Optional fields are pointers so that "absent" and "present but empty"
// stay distinguishable until classification has run.
type Payload struct {
	UID      string  `json:"uid" validate:"required"`
	Created  string  `json:"created"`
	Name     *string `json:"name" validate:"omitempty,min=1"`
	Birth    *string `json:"birth" validate:"omitempty,datetime=2006-01-02"`
	ExpYears *int    `json:"expYears" validate:"omitempty,gt=0"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Entries  []Entry `json:"entries"`
	Tags     []Tag   `json:"tags"`
}

// Payload converts a record back into wire form. Fields the user has not
// filled in are omitted rather than sent as zero values.
func (r *Record) Payload() *Payload {
	p := &Payload{UID: r.UID}
	if !r.CreatedAt.IsZero() {
		p.Created = r.CreatedAt.Format(time.RFC3339)
	}
	if r.Name != "" {
		name := r.Name
		p.Name = &name
	}
	if !r.Birth.IsZero() {
		birth := r.Birth.Format(DateLayout)
		p.Birth = &birth
	}
	if r.ExpYears > 0 {
		years := r.ExpYears
		p.ExpYears = &years
	}
	if r.Email != "" {
		email := r.Email
		p.Email = &email
	}
	return p
}

// FormData carries profile form input prior to validation.
type FormData struct {
	Name     string `json:"name" validate:"required"`
	Birth    string `json:"birth" validate:"required,datetime=2006-01-02"`
	ExpYears int    `json:"expYears" validate:"required,gt=0"`
	Email    string `json:"email" validate:"required,email"`
}
