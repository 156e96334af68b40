// Package snapshot exports and restores every user's practice data as one document.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/records"
	"github.com/verte-zerg/tuiquiz/internal/store"
	"github.com/verte-zerg/tuiquiz/internal/users"
)

// ErrNoUsers is returned when there is nothing to export.
var ErrNoUsers = fmt.Errorf("%w: no users to export", model.ErrNotFound)

// Export reads the registry and every user's records from durable storage.
// Unsaved in-memory state is not included; flush it first.
func Export(ctx context.Context, kv store.KV) (model.Snapshot, error) {
	var list []model.User
	if _, err := store.GetJSON(ctx, kv, store.UsersKey, &list); err != nil && !errors.Is(err, store.ErrCorrupt) {
		return model.Snapshot{}, err
	}
	list = users.Normalize(list)
	if len(list) == 0 {
		return model.Snapshot{}, ErrNoUsers
	}
	current, _, err := kv.Get(ctx, store.CurrentUserKey)
	if err != nil {
		return model.Snapshot{}, err
	}

	rec := records.New(kv)
	snap := model.Snapshot{
		Version:       model.SnapshotVersion,
		ExportedAt:    time.Now().UTC(),
		Users:         list,
		CurrentUserID: current,
		Data:          make(map[string]model.UserData, len(list)),
	}
	for _, u := range list {
		snap.Data[u.ID] = rec.Export(ctx, u.ID)
	}
	return snap, nil
}

// Encode renders a snapshot as indented JSON.
func Encode(snap model.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Validate checks the document shape without decoding it.
func Validate(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: snapshot is not valid JSON", model.ErrFormat)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return fmt.Errorf("%w: snapshot must be an object", model.ErrFormat)
	}
	if v := doc.Get("version"); v.Exists() {
		if v.Type != gjson.Number || v.Int() > model.SnapshotVersion {
			return fmt.Errorf("%w: unsupported snapshot version %s", model.ErrFormat, v.Raw)
		}
	}
	list := doc.Get("users")
	if !list.IsArray() {
		return fmt.Errorf("%w: users must be an array", model.ErrFormat)
	}
	entries := list.Array()
	if len(entries) == 0 {
		return fmt.Errorf("%w: users is empty", model.ErrFormat)
	}
	for i, u := range entries {
		if !u.IsObject() {
			return fmt.Errorf("%w: user %d is not an object", model.ErrFormat, i)
		}
		if id := u.Get("id"); id.Type != gjson.String || id.String() == "" {
			return fmt.Errorf("%w: user %d has no id", model.ErrFormat, i)
		}
	}
	if !doc.Get("data").IsObject() {
		return fmt.Errorf("%w: data must be an object", model.ErrFormat)
	}
	return nil
}

// Import replaces all stored practice data with the document in raw.
// The document is validated before storage is touched and written in one
// batch. A current user id missing from the users list falls back to the
// first user. The returned snapshot is what was written.
func Import(ctx context.Context, kv store.KV, raw []byte) (model.Snapshot, error) {
	if err := Validate(raw); err != nil {
		return model.Snapshot{}, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %v", model.ErrFormat, err)
	}
	snap.Users = users.Normalize(snap.Users)
	snap.CurrentUserID = pickCurrent(snap.Users, snap.CurrentUserID)
	data := make(map[string]model.UserData, len(snap.Users))
	for _, u := range snap.Users {
		data[u.ID] = snap.Data[u.ID]
	}
	snap.Data = data

	batch, err := buildBatch(snap)
	if err != nil {
		return model.Snapshot{}, err
	}
	if err := kv.Apply(ctx, batch); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

func buildBatch(snap model.Snapshot) (store.Batch, error) {
	batch := store.Batch{
		Deletes:        []string{store.UsersKey, store.CurrentUserKey},
		DeletePrefixes: []string{store.UserKeyPrefix},
	}
	usersEntry, err := store.JSONEntry(store.UsersKey, snap.Users)
	if err != nil {
		return store.Batch{}, err
	}
	batch.Sets = append(batch.Sets, usersEntry, store.Entry{Key: store.CurrentUserKey, Value: snap.CurrentUserID})

	for _, u := range snap.Users {
		entries, err := records.Entries(u.ID, snap.Data[u.ID])
		if err != nil {
			return store.Batch{}, err
		}
		batch.Sets = append(batch.Sets, entries...)
	}
	return batch, nil
}

func pickCurrent(list []model.User, id string) string {
	for _, u := range list {
		if u.ID == id {
			return id
		}
	}
	return list[0].ID
}
