// Package services holds the application services. SessionManager is
// the heart of the module: it reconciles the asynchronous identity
// stream with asynchronous profile fetches and publishes one consistent
// snapshot to every consumer.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vinayh/lifecal-web/application/ports"
	"github.com/vinayh/lifecal-web/domain/profile"
	"github.com/vinayh/lifecal-web/domain/session"
	apperrors "github.com/vinayh/lifecal-web/pkg/errors"
	"github.com/vinayh/lifecal-web/pkg/observability"
)

// fetchCall is one in-flight profile fetch. Concurrent refresh callers
// coalesce onto it instead of issuing duplicate requests.
type fetchCall struct {
	done chan struct{}
	rec  *profile.Record
	err  error
}

// SessionManager owns the canonical session state: the tagged state, the
// cached profile record and entries, and the in-flight bookkeeping. All
// mutation goes through its operations; consumers read snapshots.
type SessionManager struct {
	provider ports.AuthProvider
	store    ports.ProfileStore
	logger   *zap.Logger
	metrics  *observability.Metrics
	ttl      time.Duration
	now      func() time.Time

	mu        sync.Mutex
	state     session.State
	uid       string
	email     string
	record    *profile.Record
	kind      profile.Kind
	entries   map[string]profile.Entry
	tags      []profile.Tag
	errMsg    string
	fetchedAt time.Time
	inflight  *fetchCall

	// gen increments on every identity change or logout. A fetch
	// response whose generation no longer matches is discarded.
	gen uint64

	subs    map[int]chan session.Snapshot
	nextSub int

	unsubscribe func()
}

// NewSessionManager constructs a manager and subscribes it to the
// identity provider's change stream. ttl <= 0 selects the default
// freshness TTL. metrics may be nil.
func NewSessionManager(
	provider ports.AuthProvider,
	store ports.ProfileStore,
	ttl time.Duration,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *SessionManager {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	m := &SessionManager{
		provider: provider,
		store:    store,
		logger:   logger,
		metrics:  metrics,
		ttl:      ttl,
		now:      time.Now,
		state:    session.NoSession,
		subs:     make(map[int]chan session.Snapshot),
	}
	m.unsubscribe = provider.OnIdentityChanged(m.handleIdentityChanged)
	return m
}

// Close detaches the manager from the identity provider and closes all
// subscriber channels.
func (m *SessionManager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}

// Snapshot returns the current derived view. The returned value is safe
// to retain; its entries map is a copy.
func (m *SessionManager) Snapshot() session.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers a snapshot channel. Slow consumers drop
// intermediate snapshots rather than blocking the manager.
func (m *SessionManager) Subscribe() (<-chan session.Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan session.Snapshot, 8)
	m.subs[id] = ch
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			close(c)
			delete(m.subs, id)
		}
	}
	return ch, cancel
}

// SignIn authenticates via the identity provider. Validation failures
// resolve before any network call. Provider failures revert to
// NoSession and are surfaced to the caller.
func (m *SessionManager) SignIn(ctx context.Context, method ports.AuthMethod, creds ports.Credentials) error {
	if err := validateCredentials(method, creds); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state == session.AuthInFlight {
		m.mu.Unlock()
		return apperrors.NewStateError("sign-in already in progress")
	}
	m.setStateLocked(session.AuthInFlight)
	m.publishLocked()
	m.mu.Unlock()

	var err error
	switch method {
	case ports.AuthMethodPassword:
		_, err = m.provider.SignInWithPassword(ctx, creds.Email, creds.Password)
	case ports.AuthMethodGitHub, ports.AuthMethodGoogle:
		_, err = m.provider.SignInWithOAuth(ctx, string(method), creds.Assertion)
	}
	if err != nil {
		m.mu.Lock()
		m.clearLocked()
		m.errMsg = err.Error()
		m.publishLocked()
		m.mu.Unlock()
		m.logger.Warn("sign-in failed", zap.String("method", string(method)), zap.Error(err))
		if m.metrics != nil {
			m.metrics.SignInResult("error")
		}
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.NewAuthError("sign-in failed", err)
	}
	if m.metrics != nil {
		m.metrics.SignInResult("success")
	}
	// The provider's identity-changed callback drives the transition to
	// ProfileLoading and beyond.
	return nil
}

// SignOut clears all cached session state synchronously before the
// provider confirms, so stale data is never shown without a session.
func (m *SessionManager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.clearLocked()
	m.publishLocked()
	m.mu.Unlock()

	if err := m.provider.SignOut(ctx); err != nil {
		m.logger.Warn("provider sign-out failed", zap.Error(err))
		return apperrors.NewAuthError("sign-out failed", err)
	}
	return nil
}

// RefreshProfile fetches the profile unless the cache is fresh. A call
// while a fetch is already in flight awaits that fetch instead of
// issuing another. force bypasses the freshness check and forces a
// token refresh, matching an explicit reload.
func (m *SessionManager) RefreshProfile(ctx context.Context, force bool) (*profile.Record, error) {
	m.mu.Lock()
	if m.uid == "" {
		m.mu.Unlock()
		return nil, apperrors.NewStateError("no user session")
	}
	if m.state == session.ProfileInvalid {
		m.mu.Unlock()
		return nil, apperrors.NewStateError("profile is invalid; manual correction required")
	}
	if call := m.inflight; call != nil {
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.FetchCoalesced()
		}
		return awaitFetch(ctx, call)
	}
	if m.state == session.ProfileUpdating {
		rec := m.record
		m.mu.Unlock()
		return rec, nil
	}
	cache := &session.Cache{Record: m.record, FetchedAt: m.fetchedAt}
	if !force && !session.Stale(cache, m.uid, m.ttl, m.now()) {
		rec := m.record
		m.mu.Unlock()
		return rec, nil
	}

	call := &fetchCall{done: make(chan struct{})}
	m.inflight = call
	gen := m.gen
	uid := m.uid
	m.setStateLocked(session.ProfileLoading)
	m.publishLocked()
	m.mu.Unlock()

	payload, err := m.fetch(ctx, uid, force)
	m.settleFetch(call, gen, uid, payload, err)
	return awaitFetch(ctx, call)
}

// fetch obtains a token and performs the store read.
func (m *SessionManager) fetch(ctx context.Context, uid string, forceToken bool) (*profile.Payload, error) {
	token, err := m.provider.Token(ctx, forceToken)
	if err != nil {
		return nil, apperrors.NewAuthError("could not obtain token", err)
	}
	return m.store.GetUser(ctx, uid, token)
}

// settleFetch applies a completed fetch under the generation guard. The
// owning identity is compared at completion time; a response for a
// superseded identity is discarded without touching the cache.
func (m *SessionManager) settleFetch(call *fetchCall, gen uint64, uid string, payload *profile.Payload, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inflight == call {
		m.inflight = nil
	}
	if gen != m.gen {
		m.logger.Debug("discarding fetch for superseded identity", zap.String("uid", uid))
		if m.metrics != nil {
			m.metrics.FetchResult("discarded")
		}
		call.err = apperrors.NewStateError("session superseded during fetch")
		close(call.done)
		return
	}

	if err != nil {
		m.record = nil
		m.kind = profile.KindAbsent
		m.entries = nil
		m.tags = nil
		m.errMsg = err.Error()
		m.setStateLocked(session.ProfileAbsent)
		m.publishLocked()
		if m.metrics != nil {
			m.metrics.FetchResult("error")
		}
		call.err = err
		close(call.done)
		return
	}

	// A document belonging to a different identity is treated as absent,
	// never reused.
	if payload != nil && payload.UID != uid {
		m.logger.Warn("profile uid mismatch; treating as absent",
			zap.String("expected", uid), zap.String("got", payload.UID))
		payload = nil
	}

	m.applyClassificationLocked(profile.Classify(payload), payload)
	m.fetchedAt = m.now()
	if m.metrics != nil {
		m.metrics.FetchResult("success")
	}
	call.rec = m.record
	close(call.done)
}

// UpdateProfile validates and writes the profile form, then reclassifies
// the merged record. A successful write counts as a fresh read.
func (m *SessionManager) UpdateProfile(ctx context.Context, form profile.FormData) error {
	if err := profile.ValidateForm(form); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	prev, uid, gen, err := m.beginWrite(ctx)
	if err != nil {
		return err
	}

	token, err := m.provider.Token(ctx, false)
	var writeErr error
	if err != nil {
		writeErr = apperrors.NewAuthError("could not obtain token", err)
	} else {
		writeErr = m.store.UpdateUserProfile(ctx, uid, token, form)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return apperrors.NewStateError("session superseded during update")
	}
	if writeErr != nil {
		m.setStateLocked(prev)
		m.errMsg = writeErr.Error()
		m.publishLocked()
		if m.metrics != nil {
			m.metrics.WriteResult("profile", "error")
		}
		return writeErr
	}

	merged := *m.record
	merged.Name = form.Name
	merged.Birth, _ = time.Parse(profile.DateLayout, form.Birth)
	merged.ExpYears = form.ExpYears
	merged.Email = form.Email
	merged.UID = uid

	m.applyClassificationLocked(profile.Classify(merged.Payload()), nil)
	m.fetchedAt = m.now()
	if m.metrics != nil {
		m.metrics.WriteResult("profile", "success")
	}
	return nil
}

// UpsertEntry validates and writes one week's entry. On success the
// cached entries collection is replaced by the store's response, which
// holds exactly one entry per week.
func (m *SessionManager) UpsertEntry(ctx context.Context, entry profile.Entry) error {
	if err := profile.ValidateEntry(entry); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	prev, uid, gen, err := m.beginWrite(ctx)
	if err != nil {
		return err
	}

	token, err := m.provider.Token(ctx, false)
	var updated []profile.Entry
	var writeErr error
	if err != nil {
		writeErr = apperrors.NewAuthError("could not obtain token", err)
	} else {
		updated, writeErr = m.store.AddUpdateEntry(ctx, uid, token, entry)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return apperrors.NewStateError("session superseded during update")
	}
	m.setStateLocked(prev)
	if writeErr != nil {
		m.errMsg = writeErr.Error()
		m.publishLocked()
		if m.metrics != nil {
			m.metrics.WriteResult("entry", "error")
		}
		return writeErr
	}

	if updated != nil {
		m.entries = entriesByWeek(updated)
	} else {
		if m.entries == nil {
			m.entries = make(map[string]profile.Entry)
		}
		m.entries[entry.Start] = entry
	}
	m.adoptTagsLocked(entry.Tags)
	m.errMsg = ""
	m.fetchedAt = m.now()
	m.publishLocked()
	if m.metrics != nil {
		m.metrics.WriteResult("entry", "success")
	}
	return nil
}

// beginWrite guards a write operation: it waits for any in-flight read
// to settle, verifies the session is in a writable state, and moves to
// ProfileUpdating. It returns the state to restore on failure.
func (m *SessionManager) beginWrite(ctx context.Context) (prev session.State, uid string, gen uint64, err error) {
	m.mu.Lock()
	for m.inflight != nil {
		call := m.inflight
		m.mu.Unlock()
		if _, werr := awaitFetch(ctx, call); werr != nil && ctx.Err() != nil {
			return 0, "", 0, apperrors.NewNetworkError("cancelled while awaiting profile fetch", ctx.Err())
		}
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	if m.uid == "" {
		return 0, "", 0, apperrors.NewStateError("no user session")
	}
	if m.state != session.ProfileComplete && m.state != session.ProfileIncomplete {
		return 0, "", 0, apperrors.NewStateError("profile not writable in state " + m.state.String())
	}

	prev = m.state
	uid = m.uid
	gen = m.gen
	m.setStateLocked(session.ProfileUpdating)
	m.publishLocked()
	return prev, uid, gen, nil
}

// handleIdentityChanged is the provider observer. It serializes identity
// transitions with the profile cache: a new uid invalidates everything,
// a vanished identity clears the session outright.
func (m *SessionManager) handleIdentityChanged(id *ports.Identity) {
	m.mu.Lock()
	if id == nil {
		if m.uid != "" || m.state != session.NoSession {
			m.clearLocked()
			m.publishLocked()
		}
		m.mu.Unlock()
		return
	}

	if id.UID != m.uid {
		// Account switch or first sign-in: supersede any in-flight
		// fetch and drop the old cache.
		m.gen++
		m.record = nil
		m.kind = profile.KindAbsent
		m.entries = nil
		m.tags = nil
		m.fetchedAt = time.Time{}
		m.errMsg = ""
	}
	m.uid = id.UID
	m.email = id.Email
	m.mu.Unlock()

	if _, err := m.RefreshProfile(context.Background(), false); err != nil {
		m.logger.Warn("profile load after identity change failed", zap.Error(err))
	}
}

// clearLocked resets to NoSession. The generation bump makes any
// in-flight fetch for the old identity a no-op on arrival.
func (m *SessionManager) clearLocked() {
	m.gen++
	m.uid = ""
	m.email = ""
	m.record = nil
	m.kind = profile.KindAbsent
	m.entries = nil
	m.tags = nil
	m.fetchedAt = time.Time{}
	m.errMsg = ""
	m.inflight = nil
	m.setStateLocked(session.NoSession)
}

// applyClassificationLocked maps a classification onto state and cache.
// When payload is non-nil its entries and tags replace the cached ones.
func (m *SessionManager) applyClassificationLocked(cls profile.Classification, payload *profile.Payload) {
	m.record = cls.Record
	m.kind = cls.Kind
	if payload != nil {
		m.entries = entriesByWeek(payload.Entries)
		m.tags = payload.Tags
	}
	switch cls.Kind {
	case profile.KindComplete:
		m.errMsg = ""
		m.setStateLocked(session.ProfileComplete)
	case profile.KindIncomplete:
		m.errMsg = ""
		m.setStateLocked(session.ProfileIncomplete)
	case profile.KindInvalid:
		m.errMsg = "stored profile fails validation"
		m.setStateLocked(session.ProfileInvalid)
	default:
		m.setStateLocked(session.ProfileAbsent)
	}
	m.publishLocked()
}

func (m *SessionManager) setStateLocked(s session.State) {
	if m.state == s {
		return
	}
	m.logger.Debug("session state transition",
		zap.String("from", m.state.String()), zap.String("to", s.String()))
	m.state = s
	if m.metrics != nil {
		m.metrics.StateTransition(s.String())
	}
}

func (m *SessionManager) snapshotLocked() session.Snapshot {
	entries := make(map[string]profile.Entry, len(m.entries))
	for k, v := range m.entries {
		entries[k] = v
	}
	return session.Snapshot{
		State:    m.state,
		UID:      m.uid,
		Record:   m.record,
		Kind:     m.kind,
		Entries:  entries,
		Tags:     m.tags,
		ErrorMsg: m.errMsg,
		TakenAt:  m.now(),
	}
}

func (m *SessionManager) publishLocked() {
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// awaitFetch waits for a coalesced fetch to settle.
func awaitFetch(ctx context.Context, call *fetchCall) (*profile.Record, error) {
	select {
	case <-call.done:
		return call.rec, call.err
	case <-ctx.Done():
		return nil, apperrors.NewNetworkError("cancelled while awaiting profile fetch", ctx.Err())
	}
}

// adoptTagsLocked registers local Tag records for names the cache has
// not seen yet, so the UI can color them before the next full fetch.
func (m *SessionManager) adoptTagsLocked(names []string) {
	known := make(map[string]bool, len(m.tags))
	for _, t := range m.tags {
		known[t.Name] = true
	}
	for _, name := range names {
		if known[name] {
			continue
		}
		m.tags = append(m.tags, profile.Tag{
			ID:        uuid.NewString(),
			CreatedAt: m.now(),
			Name:      name,
			Color:     "#808080",
		})
		known[name] = true
	}
}

func entriesByWeek(entries []profile.Entry) map[string]profile.Entry {
	byWeek := make(map[string]profile.Entry, len(entries))
	for _, e := range entries {
		byWeek[e.Start] = e
	}
	return byWeek
}

func validateCredentials(method ports.AuthMethod, creds ports.Credentials) error {
	switch method {
	case ports.AuthMethodPassword:
		if err := profile.ValidateLogin(creds.Email, creds.Password); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
	case ports.AuthMethodGitHub, ports.AuthMethodGoogle:
		if creds.Assertion == "" {
			return apperrors.NewValidationError("assertion is required for OAuth sign-in")
		}
	default:
		return apperrors.NewValidationError("invalid auth method specified")
	}
	return nil
}
