// Package users manages practice profiles and the active profile pointer.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/store"
)

// Default profile names.
const (
	DefaultUserName = "Default User"
	UnnamedUserName = "Unnamed User"
)

var (
	// ErrEmptyName rejects a blank profile name.
	ErrEmptyName = fmt.Errorf("%w: user name is empty", model.ErrValidation)
	// ErrLastUser rejects deleting the only remaining profile.
	ErrLastUser = fmt.Errorf("%w: at least one user must remain", model.ErrValidation)
)

// Registry keeps the ordered profile list and the active profile id.
// The durable copy is the source of truth; Load re-reads it.
type Registry struct {
	kv        store.KV
	users     []model.User
	currentID string
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New returns a registry persisting through kv. Call Load before use.
func New(kv store.KV, opts ...Option) *Registry {
	r := &Registry{kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads the registry from durable storage. A missing, corrupt or empty
// list is replaced with a fresh default profile. The returned error only
// reports failed writes; the registry is usable either way.
func (r *Registry) Load(ctx context.Context) error {
	var list []model.User
	ok, err := store.GetJSON(ctx, r.kv, store.UsersKey, &list)
	if err != nil || !ok {
		list = nil
	}
	r.users = Normalize(list)

	var errs []error
	if len(r.users) == 0 {
		r.users = []model.User{r.newUser(DefaultUserName)}
		if err := r.saveUsers(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	current, found, err := r.kv.Get(ctx, store.CurrentUserKey)
	if err != nil || !found || r.index(current) < 0 {
		current = r.users[0].ID
		r.currentID = current
		if err := r.saveCurrent(ctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	r.currentID = current
	return errors.Join(errs...)
}

// List returns the profiles in insertion order.
func (r *Registry) List() []model.User {
	out := make([]model.User, len(r.users))
	copy(out, r.users)
	return out
}

// CurrentID returns the active profile id, or "" when none is active.
func (r *Registry) CurrentID() string {
	return r.currentID
}

// Current returns the active profile.
func (r *Registry) Current() (model.User, bool) {
	idx := r.index(r.currentID)
	if idx < 0 {
		return model.User{}, false
	}
	return r.users[idx], true
}

// Get returns the profile with id.
func (r *Registry) Get(id string) (model.User, bool) {
	idx := r.index(id)
	if idx < 0 {
		return model.User{}, false
	}
	return r.users[idx], true
}

// Add creates a profile and makes it active. A write error is returned
// alongside the created user; the in-memory registry keeps the user.
func (r *Registry) Add(ctx context.Context, name string) (model.User, error) {
	if strings.TrimSpace(name) == "" {
		return model.User{}, ErrEmptyName
	}
	user := r.newUser(name)
	r.users = append(r.users, user)
	r.currentID = user.ID
	return user, errors.Join(r.saveUsers(ctx), r.saveCurrent(ctx))
}

// Switch makes id the active profile.
func (r *Registry) Switch(ctx context.Context, id string) error {
	if r.index(id) < 0 {
		return fmt.Errorf("%w: user %q", model.ErrNotFound, id)
	}
	r.currentID = id
	return r.saveCurrent(ctx)
}

// Delete removes a profile and purges its records. When the active profile
// is deleted the first remaining one becomes active and switched is true.
func (r *Registry) Delete(ctx context.Context, id string) (switched bool, err error) {
	idx := r.index(id)
	if idx < 0 {
		return false, fmt.Errorf("%w: user %q", model.ErrNotFound, id)
	}
	if len(r.users) <= 1 {
		return false, ErrLastUser
	}

	remaining := make([]model.User, 0, len(r.users)-1)
	remaining = append(remaining, r.users[:idx]...)
	remaining = append(remaining, r.users[idx+1:]...)

	usersEntry, err := store.JSONEntry(store.UsersKey, remaining)
	if err != nil {
		return false, err
	}
	batch := store.Batch{
		Deletes: store.UserKeys(id),
		Sets:    []store.Entry{usersEntry},
	}
	if r.currentID == id {
		switched = true
		r.currentID = ""
		if len(remaining) > 0 {
			r.currentID = remaining[0].ID
			batch.Sets = append(batch.Sets, store.Entry{Key: store.CurrentUserKey, Value: r.currentID})
		}
	}
	r.users = remaining
	return switched, r.kv.Apply(ctx, batch)
}

func (r *Registry) newUser(name string) model.User {
	now := r.now()
	return model.User{
		ID:        fmt.Sprintf("user_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9]),
		Name:      displayName(name),
		CreatedAt: now.UTC(),
	}
}

func (r *Registry) index(id string) int {
	if id == "" {
		return -1
	}
	for i, u := range r.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) saveUsers(ctx context.Context) error {
	return store.SetJSON(ctx, r.kv, store.UsersKey, r.users)
}

func (r *Registry) saveCurrent(ctx context.Context) error {
	if r.currentID == "" {
		return nil
	}
	return r.kv.Set(ctx, store.CurrentUserKey, r.currentID)
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return UnnamedUserName
	}
	return name
}

// Normalize drops entries without ids and duplicate ids and names unnamed users.
func Normalize(list []model.User) []model.User {
	out := make([]model.User, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, u := range list {
		if u.ID == "" {
			continue
		}
		if _, ok := seen[u.ID]; ok {
			continue
		}
		seen[u.ID] = struct{}{}
		u.Name = displayName(u.Name)
		out = append(out, u)
	}
	return out
}
