package service

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"auxilium-api/internal/model"
	"auxilium-api/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type storedToken struct {
	userID    string
	expiresAt time.Time
}

type credentialState struct {
	users  map[string]model.Credential
	tokens map[string]storedToken
}

func (s credentialState) clone() credentialState {
	out := credentialState{
		users:  make(map[string]model.Credential, len(s.users)),
		tokens: make(map[string]storedToken, len(s.tokens)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.tokens {
		out.tokens[k] = v
	}
	return out
}

// fakeCredentialStore serializes transactions and applies them to a copy of the state
// that only replaces the committed state when fn succeeds.
type fakeCredentialStore struct {
	clock *testClock

	txMu  sync.Mutex
	mu    sync.Mutex
	state credentialState

	commitErr error
	// staleRotation makes RotateRefreshToken match no row, as when a concurrent
	// refresh committed between the lookup and the rotation.
	staleRotation bool
}

func newFakeCredentialStore(clock *testClock) *fakeCredentialStore {
	return &fakeCredentialStore{
		clock: clock,
		state: credentialState{users: map[string]model.Credential{}, tokens: map[string]storedToken{}},
	}
}

func (f *fakeCredentialStore) FindByEmail(_ context.Context, email string) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return findByEmail(f.state, email)
}

func (f *fakeCredentialStore) FindByID(_ context.Context, id string) (model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.state.users[id]
	if !ok {
		return model.Credential{}, model.ErrUserNotFound
	}
	return c, nil
}

func (f *fakeCredentialStore) WithTx(_ context.Context, fn func(repository.CredentialTx) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	working := f.state.clone()
	f.mu.Unlock()

	if err := fn(&fakeTx{state: working, clock: f.clock, staleRotation: f.staleRotation}); err != nil {
		return err
	}
	if f.commitErr != nil {
		return f.commitErr
	}

	f.mu.Lock()
	f.state = working
	f.mu.Unlock()
	return nil
}

func (f *fakeCredentialStore) put(c model.Credential) {
	f.mu.Lock()
	f.state.users[c.ID] = c
	f.mu.Unlock()
}

func (f *fakeCredentialStore) remove(id string) {
	f.mu.Lock()
	delete(f.state.users, id)
	f.mu.Unlock()
}

func (f *fakeCredentialStore) tokenCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.state.tokens {
		if t.userID == userID {
			n++
		}
	}
	return n
}

func (f *fakeCredentialStore) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.state.users)
}

func findByEmail(state credentialState, email string) (model.Credential, error) {
	for _, c := range state.users {
		if strings.EqualFold(c.EmailAddress, strings.TrimSpace(email)) {
			return c, nil
		}
	}
	return model.Credential{}, model.ErrUserNotFound
}

type fakeTx struct {
	state         credentialState
	clock         *testClock
	staleRotation bool
}

func (t *fakeTx) FindByEmail(_ context.Context, email string) (model.Credential, error) {
	return findByEmail(t.state, email)
}

func (t *fakeTx) Insert(_ context.Context, c model.Credential) error {
	if _, err := findByEmail(t.state, c.EmailAddress); err == nil {
		return model.ErrUserAlreadyExists
	}
	t.state.users[c.ID] = c
	return nil
}

func (t *fakeTx) UpdateFlags(_ context.Context, userID string, isAdmin *bool, allowLogin *bool) (model.Credential, error) {
	c, ok := t.state.users[userID]
	if !ok {
		return model.Credential{}, model.ErrUserNotFound
	}
	if isAdmin != nil {
		c.IsAdmin = *isAdmin
	}
	if allowLogin != nil {
		c.AllowLogin = *allowLogin
	}
	t.state.users[userID] = c
	return c, nil
}

func (t *fakeTx) InsertRefreshToken(_ context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	t.state.tokens[tokenHash] = storedToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (t *fakeTx) FindActiveRefreshToken(_ context.Context, tokenHash string) (model.RefreshSession, error) {
	tok, ok := t.state.tokens[tokenHash]
	if !ok || !tok.expiresAt.After(t.clock.Now()) {
		return model.RefreshSession{}, model.ErrTokenNotFound
	}
	user, ok := t.state.users[tok.userID]
	if !ok {
		return model.RefreshSession{}, model.ErrTokenNotFound
	}
	return model.RefreshSession{UserID: tok.userID, TokenHash: tokenHash, ExpiresAt: tok.expiresAt, User: user}, nil
}

func (t *fakeTx) RotateRefreshToken(_ context.Context, oldHash string, newHash string, newExpiresAt time.Time) (bool, error) {
	tok, ok := t.state.tokens[oldHash]
	if !ok || !tok.expiresAt.After(t.clock.Now()) || t.staleRotation {
		return false, nil
	}
	delete(t.state.tokens, oldHash)
	t.state.tokens[newHash] = storedToken{userID: tok.userID, expiresAt: newExpiresAt}
	return true, nil
}

func (t *fakeTx) DeleteRefreshTokensForUser(_ context.Context, userID string) (int64, error) {
	var n int64
	for hash, tok := range t.state.tokens {
		if tok.userID == userID {
			delete(t.state.tokens, hash)
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) DeleteExpiredRefreshTokens(_ context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	for hash, tok := range t.state.tokens {
		if tok.userID == userID && !tok.expiresAt.After(now) {
			delete(t.state.tokens, hash)
			n++
		}
	}
	return n, nil
}

type fakeProfileStore struct {
	mu       sync.Mutex
	profiles map[string]model.Profile
	saveErr  error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{profiles: map[string]model.Profile{}}
}

func (f *fakeProfileStore) Get(_ context.Context, id string) (model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return model.Profile{}, model.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfileStore) Save(_ context.Context, p model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.profiles[p.ID] = p
	return nil
}

func (f *fakeProfileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, id)
	return nil
}

func (f *fakeProfileStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.profiles)
}

type fakeCaseStore struct {
	mu      sync.Mutex
	cases   map[string]model.Case
	saveErr error
	findErr error
}

func newFakeCaseStore(cases ...model.Case) *fakeCaseStore {
	f := &fakeCaseStore{cases: map[string]model.Case{}}
	for _, c := range cases {
		f.cases[c.ID] = c
	}
	return f
}

func (f *fakeCaseStore) Get(_ context.Context, id string) (model.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[id]
	if !ok {
		return model.Case{}, model.ErrCaseNotFound
	}
	return c, nil
}

func (f *fakeCaseStore) Save(_ context.Context, c model.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.cases[c.ID] = c
	return nil
}

func (f *fakeCaseStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cases, id)
	return nil
}

func (f *fakeCaseStore) Find(_ context.Context, selector bson.M, page model.Page) (model.CaseList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return model.CaseList{}, f.findErr
	}

	matched := make([]model.Case, 0)
	for _, c := range f.cases {
		if matchSelector(c, selector) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	start := int(page.Skip())
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+page.Size, len(matched))

	return model.CaseList{Cases: matched[start:end], Total: total}, nil
}

func (f *fakeCaseStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cases)
}

// matchSelector understands the subset of the query language the case service emits.
func matchSelector(c model.Case, selector bson.M) bool {
	for key, value := range selector {
		switch key {
		case "$or":
			anyMatch := false
			for _, sub := range value.(bson.A) {
				if matchSelector(c, sub.(bson.M)) {
					anyMatch = true
				}
			}
			if !anyMatch {
				return false
			}
		case "$and":
			for _, sub := range value.(bson.A) {
				if !matchSelector(c, sub.(bson.M)) {
					return false
				}
			}
		default:
			want := value.(bson.M)["$elemMatch"].(bson.M)["$eq"].(string)
			var field []string
			switch key {
			case "clients":
				field = c.Clients
			case "workers":
				field = c.Workers
			}
			if !slices.Contains(field, want) {
				return false
			}
		}
	}
	return true
}

type fakeCaptcha struct {
	err error
}

func (f fakeCaptcha) Verify(context.Context, string, string) error {
	return f.err
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) ObserveAuth(operation string, outcome string) {
	r.mu.Lock()
	r.events = append(r.events, operation+":"+outcome)
	r.mu.Unlock()
}

func (r *recordingObserver) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.events, event)
}

var errStoreDown = errors.New("store unavailable")
