package profile

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Kind is the outcome of classifying a raw profile payload.
type Kind int

const (
	// KindAbsent means no profile document exists for the user.
	KindAbsent Kind = iota
	// KindComplete means every profile field is present and valid.
	KindComplete
	// KindIncomplete means some optional fields are missing, but every
	// field that is present passed its own validator.
	KindIncomplete
	// KindInvalid means a present field failed validation. A malformed
	// field is never tolerated, even alongside missing ones.
	KindInvalid
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindComplete:
		return "complete"
	case KindIncomplete:
		return "incomplete"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Classification is the result of classifying a payload. Record is set
// for Complete and Incomplete; Missing names the unfilled fields for
// Incomplete.
type Classification struct {
	Kind    Kind
	Record  *Record
	Missing []string
}

// strictPayload mirrors Payload with every profile field required. The
// strict schema is tried first; only when it fails is the relaxed
// (optional-fields) schema consulted.
type strictPayload struct {
	UID      string `validate:"required"`
	Name     string `validate:"required"`
	Birth    string `validate:"required,datetime=2006-01-02"`
	ExpYears int    `validate:"required,gt=0"`
	Email    string `validate:"required,email"`
}

// Classify maps a raw profile payload to Absent, Complete, Incomplete, or
// Invalid. The ordering is strict schema, then relaxed schema, then
// rejection: a payload with a malformed email and a missing name is
// Invalid, not Incomplete.
func Classify(p *Payload) Classification {
	if p == nil {
		return Classification{Kind: KindAbsent}
	}

	if strict, ok := toStrict(p); ok {
		if err := validate.Struct(strict); err == nil {
			return Classification{Kind: KindComplete, Record: toRecord(p)}
		}
	}

	if err := validate.Struct(p); err != nil {
		return Classification{Kind: KindInvalid}
	}

	return Classification{
		Kind:    KindIncomplete,
		Record:  toRecord(p),
		Missing: missingFields(p),
	}
}

// toStrict flattens a payload for the strict schema. ok is false when any
// field is absent, in which case the strict schema cannot apply.
func toStrict(p *Payload) (strictPayload, bool) {
	if p.Name == nil || p.Birth == nil || p.ExpYears == nil || p.Email == nil {
		return strictPayload{}, false
	}
	return strictPayload{
		UID:      p.UID,
		Name:     *p.Name,
		Birth:    *p.Birth,
		ExpYears: *p.ExpYears,
		Email:    *p.Email,
	}, true
}

// toRecord normalizes a payload that already passed validation.
func toRecord(p *Payload) *Record {
	r := &Record{UID: p.UID}
	if p.Created != "" {
		if created, err := time.Parse(time.RFC3339, p.Created); err == nil {
			r.CreatedAt = created
		}
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Birth != nil {
		// Parse error is unreachable after validation.
		r.Birth, _ = time.Parse(DateLayout, *p.Birth)
	}
	if p.ExpYears != nil {
		r.ExpYears = *p.ExpYears
	}
	if p.Email != nil {
		r.Email = *p.Email
	}
	return r
}

func missingFields(p *Payload) []string {
	var missing []string
	if p.Name == nil {
		missing = append(missing, "name")
	}
	if p.Birth == nil {
		missing = append(missing, "birth")
	}
	if p.ExpYears == nil {
		missing = append(missing, "expYears")
	}
	if p.Email == nil {
		missing = append(missing, "email")
	}
	return missing
}

// loginForm mirrors the login form schema.
type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// ValidateLogin checks login credentials before any provider call.
func ValidateLogin(email, password string) error {
	return validate.Struct(loginForm{Email: email, Password: password})
}

// ValidateForm checks profile form input against the full schema before
// any network call is made.
func ValidateForm(form FormData) error {
	return validate.Struct(form)
}

// ValidateEntry checks entry form input. The week start must be a
// calendar date.
func ValidateEntry(e Entry) error {
	return validate.Struct(e)
}
