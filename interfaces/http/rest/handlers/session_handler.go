package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vinayh/lifecal-web/application/ports"
	"github.com/vinayh/lifecal-web/application/routing"
	"github.com/vinayh/lifecal-web/application/services"
	"github.com/vinayh/lifecal-web/domain/calendar"
	"github.com/vinayh/lifecal-web/domain/profile"
	"github.com/vinayh/lifecal-web/domain/session"
	"github.com/vinayh/lifecal-web/pkg/common"
	apperrors "github.com/vinayh/lifecal-web/pkg/errors"
)

// SessionHandler exposes the session manager over HTTP.
type SessionHandler struct {
	sessions *services.SessionManager
	logger   *zap.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions *services.SessionManager, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// loginRequest is the login endpoint body.
type loginRequest struct {
	Method    string `json:"method"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Assertion string `json:"assertion"`
}

// profileView is the snapshot's profile in wire form.
type profileView struct {
	UID      string `json:"uid"`
	Created  string `json:"created,omitempty"`
	Name     string `json:"name,omitempty"`
	Birth    string `json:"birth,omitempty"`
	ExpYears int    `json:"expYears,omitempty"`
	Email    string `json:"email,omitempty"`
}

// snapshotView is the snapshot in wire form.
type snapshotView struct {
	State   string          `json:"state"`
	UID     string          `json:"uid,omitempty"`
	Profile *profileView    `json:"profile,omitempty"`
	Kind    string          `json:"profileKind"`
	Entries []profile.Entry `json:"entries,omitempty"`
	Tags    []profile.Tag   `json:"tags,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func toView(snap session.Snapshot) snapshotView {
	view := snapshotView{
		State: snap.State.String(),
		UID:   snap.UID,
		Kind:  snap.Kind.String(),
		Tags:  snap.Tags,
		Error: snap.ErrorMsg,
	}
	if snap.Record != nil {
		p := &profileView{
			UID:      snap.Record.UID,
			Name:     snap.Record.Name,
			ExpYears: snap.Record.ExpYears,
			Email:    snap.Record.Email,
		}
		if !snap.Record.CreatedAt.IsZero() {
			p.Created = snap.Record.CreatedAt.Format(time.RFC3339)
		}
		if !snap.Record.Birth.IsZero() {
			p.Birth = snap.Record.Birth.Format(profile.DateLayout)
		}
		view.Profile = p
	}
	for _, e := range snap.Entries {
		view.Entries = append(view.Entries, e)
	}
	return view
}

// Login handles POST /session/login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	creds := ports.Credentials{Email: req.Email, Password: req.Password, Assertion: req.Assertion}
	if err := h.sessions.SignIn(r.Context(), ports.AuthMethod(req.Method), creds); err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, toView(h.sessions.Snapshot()))
}

// Logout handles POST /session/logout.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context()); err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, toView(h.sessions.Snapshot()))
}

// Get handles GET /session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, toView(h.sessions.Snapshot()))
}

// Refresh handles POST /session/refresh. force=true bypasses the
// freshness policy.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if _, err := h.sessions.RefreshProfile(r.Context(), force); err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, toView(h.sessions.Snapshot()))
}

// Route handles GET /route?path= and returns the routing decision for
// the current snapshot.
func (h *SessionHandler) Route(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = routing.PathHome
	}
	decision := routing.Decide(h.sessions.Snapshot(), path)
	common.RespondJSON(w, http.StatusOK, struct {
		Outcome string `json:"outcome"`
		Target  string `json:"target,omitempty"`
	}{Outcome: decision.Outcome.String(), Target: decision.Target})
}

// UpdateProfile handles PUT /profile.
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var form profile.FormData
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if err := h.sessions.UpdateProfile(r.Context(), form); err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, toView(h.sessions.Snapshot()))
}

// UpsertEntry handles PUT /entries/{start}.
func (h *SessionHandler) UpsertEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Note string   `json:"note"`
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	entry := profile.Entry{
		Start: chi.URLParam(r, "start"),
		Note:  body.Note,
		Tags:  body.Tags,
	}
	if err := h.sessions.UpsertEntry(r.Context(), entry); err != nil {
		respondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, toView(h.sessions.Snapshot()))
}

// Calendar handles GET /calendar and returns the week grid joined with
// entries.
func (h *SessionHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	snap := h.sessions.Snapshot()
	if snap.State != session.ProfileComplete {
		common.RespondError(w, http.StatusConflict, "PROFILE_NOT_READY",
			"calendar requires a complete profile")
		return
	}
	weeks := calendar.Weeks(snap.Record, snap.Entries, time.Now())
	common.RespondJSON(w, http.StatusOK, weeks)
}

// respondAppError maps a typed error to an HTTP response.
func respondAppError(w http.ResponseWriter, err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		common.RespondError(w, apperrors.HTTPStatusOf(err), string(appErr.Type), appErr.Message)
		return
	}
	common.RespondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
}
