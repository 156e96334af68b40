package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Practice-data key layout.
const (
	UsersKey       = "quiz_users"
	CurrentUserKey = "quiz_current_user"
	UserKeyPrefix  = "quiz_user_"
)

// Per-user record names.
const (
	WrongQuestions = "wrong_questions"
	ExamStats      = "exam_stats"
	Progress       = "progress"
)

// ErrCorrupt marks a stored value that is not valid JSON for its record.
var ErrCorrupt = errors.New("corrupt stored value")

// UserKey builds the namespaced key of one per-user record.
func UserKey(userID, name string) string {
	return UserKeyPrefix + userID + "_" + name
}

// UserKeys returns every per-user record key for userID.
func UserKeys(userID string) []string {
	return []string{
		UserKey(userID, WrongQuestions),
		UserKey(userID, ExamStats),
		UserKey(userID, Progress),
	}
}

// GetJSON decodes the value stored at key into v.
// It reports false without error when the key is missing.
func GetJSON(ctx context.Context, kv KV, key string, v any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	entry, err := JSONEntry(key, v)
	if err != nil {
		return err
	}
	return kv.Set(ctx, entry.Key, entry.Value)
}

// JSONEntry encodes v as a batch entry.
func JSONEntry(key string, v any) (Entry, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return Entry{Key: key, Value: string(data)}, nil
}
