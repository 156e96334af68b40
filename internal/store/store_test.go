package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/verte-zerg/tuiquiz/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "tuiquiz.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func backends(t *testing.T) map[string]KV {
	return map[string]KV{
		"sqlite": openTestStore(t),
		"memory": NewMemory(),
	}
}

func TestKVGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
				t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
			}
			if err := kv.Set(ctx, "a", "1"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := kv.Set(ctx, "a", "2"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			v, ok, err := kv.Get(ctx, "a")
			if err != nil || !ok || v != "2" {
				t.Fatalf("unexpected get: %q %v %v", v, ok, err)
			}
			if err := kv.Delete(ctx, "a", "never-set"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, ok, _ := kv.Get(ctx, "a"); ok {
				t.Fatalf("expected key to be deleted")
			}
		})
	}
}

func TestKVApplyBatch(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = kv.Set(ctx, UsersKey, "old")
			_ = kv.Set(ctx, UserKey("gone", WrongQuestions), "[]")
			_ = kv.Set(ctx, "unrelated", "keep")
			err := kv.Apply(ctx, Batch{
				Deletes:        []string{UsersKey},
				DeletePrefixes: []string{UserKeyPrefix},
				Sets: []Entry{
					{Key: UsersKey, Value: "new"},
					{Key: UserKey("u1", ExamStats), Value: "{}"},
				},
			})
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if v, _, _ := kv.Get(ctx, UsersKey); v != "new" {
				t.Fatalf("expected users rewritten, got %q", v)
			}
			if _, ok, _ := kv.Get(ctx, UserKey("gone", WrongQuestions)); ok {
				t.Fatalf("expected prefixed key purged")
			}
			if v, _, _ := kv.Get(ctx, "unrelated"); v != "keep" {
				t.Fatalf("expected unrelated key untouched")
			}
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	in := map[string]model.ExamStats{"1": {Total: 2, Correct: 1, Wrong: 1}}
	if err := SetJSON(ctx, kv, "stats", in); err != nil {
		t.Fatalf("set json: %v", err)
	}
	var out map[string]model.ExamStats
	ok, err := GetJSON(ctx, kv, "stats", &out)
	if err != nil || !ok {
		t.Fatalf("get json: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("unexpected value: %+v", out)
	}

	_ = kv.Set(ctx, "broken", "{not json")
	if _, err := GetJSON(ctx, kv, "broken", &out); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected corrupt error, got %v", err)
	}
}

func TestMemoryFailureIsStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	kv.Fail(errors.New("quota exceeded"))
	if err := kv.Set(ctx, "a", "1"); !errors.Is(err, model.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	kv.Fail(nil)
	if err := kv.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
}
