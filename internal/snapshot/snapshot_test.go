package snapshot

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/records"
	"github.com/verte-zerg/tuiquiz/internal/store"
	"github.com/verte-zerg/tuiquiz/internal/users"
)

func seed(t *testing.T, kv store.KV) (first, second model.User) {
	t.Helper()
	ctx := context.Background()
	reg := users.New(kv)
	if err := reg.Load(ctx); err != nil {
		t.Fatalf("load registry: %v", err)
	}
	first, _ = reg.Current()
	second, err := reg.Add(ctx, "Bob")
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	rec := records.New(kv)
	q := model.Question{ID: "q7", ExamID: "3", Answer: "B", Options: []model.Option{{Key: "A"}, {Key: "B"}}}
	if _, err := rec.RecordWrongAnswer(ctx, second.ID, q); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rec.CommitRoundStats(ctx, second.ID, map[string]int{"3": 5}, map[string]int{"3": 1}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	p := model.Progress{Mode: model.ModeAll, CurrentIndex: 1, QuestionIDs: []string{"q1", "q7"}, Timestamp: 1000}
	if err := rec.SaveProgress(ctx, second.ID, p); err != nil {
		t.Fatalf("save progress: %v", err)
	}
	return first, second
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := store.NewMemory()
	_, bob := seed(t, src)

	snap, err := Export(ctx, src)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if snap.Version != model.SnapshotVersion || len(snap.Users) != 2 || snap.CurrentUserID != bob.ID {
		t.Fatalf("unexpected snapshot header: %+v", snap)
	}
	if snap.Data[bob.ID].Progress == nil {
		t.Fatalf("expected progress in export")
	}
	raw, err := Encode(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	dst := store.NewMemory()
	_ = dst.Set(ctx, store.UserKey("stale", store.WrongQuestions), "[]")
	if _, err := Import(ctx, dst, raw); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, ok, _ := dst.Get(ctx, store.UserKey("stale", store.WrongQuestions)); ok {
		t.Fatalf("expected previous data purged")
	}

	again, err := Export(ctx, dst)
	if err != nil {
		t.Fatalf("export after import: %v", err)
	}
	if !reflect.DeepEqual(snap.Users, again.Users) || snap.CurrentUserID != again.CurrentUserID {
		t.Fatalf("registry changed: %+v vs %+v", snap.Users, again.Users)
	}
	if !reflect.DeepEqual(snap.Data, again.Data) {
		t.Fatalf("records changed:\n%+v\n%+v", snap.Data, again.Data)
	}
}

func TestImportRejectsBadDocuments(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	seed(t, kv)
	before := kv.Dump()

	cases := map[string]string{
		"invalid json":   `{"users": [`,
		"not object":     `[1, 2]`,
		"users missing":  `{"data": {}}`,
		"users object":   `{"users": {"id": "a"}, "data": {}}`,
		"users empty":    `{"users": [], "data": {}}`,
		"user no id":     `{"users": [{"name": "x"}], "data": {}}`,
		"user number id": `{"users": [{"id": 5}], "data": {}}`,
		"data missing":   `{"users": [{"id": "a"}]}`,
		"future version": `{"version": 2, "users": [{"id": "a"}], "data": {}}`,
		"bad user data":  `{"users": [{"id": "a"}], "data": {"a": {"wrongQuestions": 5}}}`,
	}
	for name, raw := range cases {
		if _, err := Import(ctx, kv, []byte(raw)); !errors.Is(err, model.ErrFormat) {
			t.Fatalf("%s: expected format error, got %v", name, err)
		}
		if !reflect.DeepEqual(before, kv.Dump()) {
			t.Fatalf("%s: storage modified by rejected import", name)
		}
	}
}

func TestImportFallsBackToFirstUser(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	raw := `{"version": 1, "users": [{"id": "a", "name": "A"}, {"id": "b", "name": ""}], "currentUserId": "zzz",
		"data": {"b": {"wrongQuestions": [{"id": "q1", "examId": 2}], "examStats": {"2": {"total": 1, "correct": 0, "wrong": 1}}}}}`

	snap, err := Import(ctx, kv, []byte(raw))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if snap.CurrentUserID != "a" {
		t.Fatalf("expected fallback to first user, got %q", snap.CurrentUserID)
	}
	if cur, _, _ := kv.Get(ctx, store.CurrentUserKey); cur != "a" {
		t.Fatalf("expected stored current user a, got %q", cur)
	}

	reg := users.New(kv)
	if err := reg.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, _ := reg.Get("b"); got.Name != users.UnnamedUserName {
		t.Fatalf("expected unnamed user normalized, got %q", got.Name)
	}

	rec := records.New(kv)
	if data := rec.Export(ctx, "a"); len(data.WrongQuestions) != 0 || data.Progress != nil {
		t.Fatalf("expected empty defaults for user a, got %+v", data)
	}
	if raw, ok, _ := kv.Get(ctx, store.UserKey("a", store.WrongQuestions)); !ok || raw != "[]" {
		t.Fatalf("expected default wrong set written, got %q", raw)
	}
	if _, ok, _ := kv.Get(ctx, store.UserKey("a", store.Progress)); ok {
		t.Fatalf("expected no progress key for user without progress")
	}
	b := rec.Export(ctx, "b")
	if len(b.WrongQuestions) != 1 || b.ExamStats["2"].Wrong != 1 {
		t.Fatalf("unexpected user b data: %+v", b)
	}
}

func TestImportStorageFailureLeavesDataIntact(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	seed(t, kv)
	before := kv.Dump()

	kv.Fail(errors.New("disk full"))
	_, err := Import(ctx, kv, []byte(`{"users": [{"id": "a"}], "data": {}}`))
	if !errors.Is(err, model.ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}
	kv.Fail(nil)
	if !reflect.DeepEqual(before, kv.Dump()) {
		t.Fatalf("expected storage unchanged after failed import")
	}
}

func TestExportWithoutUsers(t *testing.T) {
	if _, err := Export(context.Background(), store.NewMemory()); !errors.Is(err, ErrNoUsers) {
		t.Fatalf("expected ErrNoUsers, got %v", err)
	}
}

func TestEncodeShape(t *testing.T) {
	raw, err := Encode(model.Snapshot{Version: 1, Users: []model.User{{ID: "a"}}, Data: map[string]model.UserData{}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := Validate(raw); err != nil {
		t.Fatalf("expected encoded snapshot to validate: %v", err)
	}
	if !strings.Contains(string(raw), `"currentUserId"`) {
		t.Fatalf("expected currentUserId field in %s", raw)
	}
}
