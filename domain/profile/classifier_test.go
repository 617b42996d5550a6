package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create string pointer
func strPtr(s string) *string {
	return &s
}

// Helper function to create int pointer
func intPtr(i int) *int {
	return &i
}

func validPayload() *Payload {
	return &Payload{
		UID:      "u1",
		Created:  "2024-01-15T10:00:00Z",
		Name:     strPtr("Amy"),
		Birth:    strPtr("1990-01-01"),
		ExpYears: intPtr(80),
		Email:    strPtr("amy@example.com"),
	}
}

func TestClassify_NilPayload(t *testing.T) {
	cls := Classify(nil)

	assert.Equal(t, KindAbsent, cls.Kind)
	assert.Nil(t, cls.Record)
}

func TestClassify_CompleteProfile(t *testing.T) {
	cls := Classify(validPayload())

	require.Equal(t, KindComplete, cls.Kind)
	require.NotNil(t, cls.Record)
	assert.Equal(t, "u1", cls.Record.UID)
	assert.Equal(t, "Amy", cls.Record.Name)
	assert.Equal(t, 80, cls.Record.ExpYears)
	assert.Equal(t, "amy@example.com", cls.Record.Email)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), cls.Record.Birth)
	assert.Empty(t, cls.Missing)
}

func TestClassify_MissingSingleFieldIsIncomplete(t *testing.T) {
	cases := map[string]func(*Payload){
		"name":     func(p *Payload) { p.Name = nil },
		"birth":    func(p *Payload) { p.Birth = nil },
		"expYears": func(p *Payload) { p.ExpYears = nil },
		"email":    func(p *Payload) { p.Email = nil },
	}

	for field, clear := range cases {
		t.Run(field, func(t *testing.T) {
			p := validPayload()
			clear(p)

			cls := Classify(p)

			require.Equal(t, KindIncomplete, cls.Kind)
			require.NotNil(t, cls.Record)
			assert.Equal(t, []string{field}, cls.Missing)
		})
	}
}

func TestClassify_MalformedFieldIsInvalid(t *testing.T) {
	cases := map[string]func(*Payload){
		"malformed birth": func(p *Payload) { p.Birth = strPtr("not-a-date") },
		"malformed email": func(p *Payload) { p.Email = strPtr("nope") },
		"zero expYears":   func(p *Payload) { p.ExpYears = intPtr(0) },
		"negative years":  func(p *Payload) { p.ExpYears = intPtr(-5) },
		"missing uid":     func(p *Payload) { p.UID = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := validPayload()
			mutate(p)

			cls := Classify(p)

			assert.Equal(t, KindInvalid, cls.Kind)
			assert.Nil(t, cls.Record)
		})
	}
}

// A present-but-malformed field is never tolerated, even when other
// fields are missing too.
func TestClassify_MalformedBeatsMissing(t *testing.T) {
	p := validPayload()
	p.Name = nil
	p.Birth = strPtr("not-a-date")

	cls := Classify(p)

	assert.Equal(t, KindInvalid, cls.Kind)
}

func TestClassify_Idempotent(t *testing.T) {
	for name, payload := range map[string]*Payload{
		"complete": validPayload(),
		"incomplete": {
			UID:  "u1",
			Name: strPtr("Amy"),
		},
	} {
		t.Run(name, func(t *testing.T) {
			first := Classify(payload)
			require.NotNil(t, first.Record)

			second := Classify(first.Record.Payload())

			assert.Equal(t, first.Kind, second.Kind)
			assert.Equal(t, first.Record, second.Record)
		})
	}
}

func TestValidateLogin(t *testing.T) {
	assert.NoError(t, ValidateLogin("amy@example.com", "secret"))
	assert.Error(t, ValidateLogin("not-an-email", "secret"))
	assert.Error(t, ValidateLogin("amy@example.com", ""))
}

func TestValidateForm(t *testing.T) {
	form := FormData{Name: "Amy", Birth: "1990-01-01", ExpYears: 80, Email: "amy@example.com"}
	assert.NoError(t, ValidateForm(form))

	form.Birth = "01/01/1990"
	assert.Error(t, ValidateForm(form))
}

func TestValidateEntry(t *testing.T) {
	assert.NoError(t, ValidateEntry(Entry{Start: "2024-03-04", Note: "Trip"}))
	assert.Error(t, ValidateEntry(Entry{Start: "March 4th", Note: "Trip"}))
	assert.Error(t, ValidateEntry(Entry{Note: "Trip"}))
}
