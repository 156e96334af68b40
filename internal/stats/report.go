package stats

import (
	"context"

	"github.com/verte-zerg/tuiquiz/internal/model"
)

// Source loads a user's durable practice records.
type Source interface {
	LoadUserData(ctx context.Context, userID string) model.UserData
}

// BuildReport analyses the stored records of one user, without a live round.
func BuildReport(ctx context.Context, src Source, userID string) Analysis {
	data := src.LoadUserData(ctx, userID)
	return BuildAnalysis(data.WrongQuestions, data.ExamStats, nil, nil)
}
