// Package app wires the registry, records and round machine into one
// context object that front ends drive through a Presenter.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verte-zerg/tuiquiz/internal/bank"
	"github.com/verte-zerg/tuiquiz/internal/generator"
	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/records"
	"github.com/verte-zerg/tuiquiz/internal/session"
	"github.com/verte-zerg/tuiquiz/internal/snapshot"
	"github.com/verte-zerg/tuiquiz/internal/stats"
	"github.com/verte-zerg/tuiquiz/internal/store"
	"github.com/verte-zerg/tuiquiz/internal/users"
)

// ErrBankNotLoaded is returned when a round starts before a bank is set.
var ErrBankNotLoaded = fmt.Errorf("%w: question bank not loaded", model.ErrValidation)

// Config holds round building preferences.
type Config struct {
	Shuffle     bool
	Limit       int
	SnapshotTTL time.Duration
	// ExamBias scales how strongly shuffled all-practice rounds favor exams
	// with a high error rate. Zero disables it.
	ExamBias float64
}

// QuestionView is what a front end needs to render the current question.
type QuestionView struct {
	Question model.Question
	Index    int
	Total    int
	Label    string
	Answered bool
	Chosen   string
	Correct  bool
}

// Last reports whether this is the final question of the round.
func (v QuestionView) Last() bool {
	return v.Index == v.Total-1
}

// SummaryView is the end-of-round result.
type SummaryView struct {
	Label   string
	Summary stats.RoundSummary
	Wrong   []model.Question
}

// Presenter receives plain data to render. Implementations must not call
// back into App from these methods.
type Presenter interface {
	ShowQuestion(QuestionView)
	ShowSummary(SummaryView)
	ShowAnalysis(stats.Analysis)
	ShowUserList(list []model.User, currentID string)
}

// App is the practice application context. It is not safe for concurrent use.
type App struct {
	kv        store.KV
	registry  *users.Registry
	records   *records.Store
	machine   *session.Machine
	bank      *bank.Bank
	gen       *generator.Generator
	presenter Presenter
	cfg       Config
	now       func() time.Time
	data      model.UserData
}

// Option configures an App.
type Option func(*App)

// WithConfig sets round building preferences.
func WithConfig(cfg Config) Option {
	return func(a *App) {
		a.cfg = cfg
	}
}

// WithGenerator overrides the round generator.
func WithGenerator(gen *generator.Generator) Option {
	return func(a *App) {
		a.gen = gen
	}
}

// WithClock overrides the time source for profiles and snapshots.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// New returns an App persisting through kv. Call Init before use.
func New(kv store.KV, presenter Presenter, opts ...Option) *App {
	a := &App{
		kv:        kv,
		records:   records.New(kv),
		gen:       generator.New(),
		presenter: presenter,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registry = users.New(kv, users.WithClock(a.now))
	return a
}

// SetPresenter replaces the presenter.
func (a *App) SetPresenter(p Presenter) {
	a.presenter = p
}

// Init loads the registry and the active user's records. Errors are
// storage write failures; the app stays usable.
func (a *App) Init(ctx context.Context) error {
	err := a.registry.Load(ctx)
	a.machine = a.newMachine(a.registry.CurrentID())
	a.data = a.records.LoadUserData(ctx, a.registry.CurrentID())
	return err
}

// SetBank installs the question bank and resumes the active user's round.
func (a *App) SetBank(ctx context.Context, b *bank.Bank) (bool, error) {
	a.bank = b
	resumed, err := a.machine.Restore(ctx, a.bank)
	if resumed {
		a.afterRound(ctx)
		a.present()
	}
	return resumed, err
}

// Bank returns the loaded question bank, or nil.
func (a *App) Bank() *bank.Bank {
	return a.bank
}

// ExamIDs lists the exams of the loaded bank.
func (a *App) ExamIDs() []string {
	return a.bank.ExamIDs()
}

// CurrentUser returns the active profile.
func (a *App) CurrentUser() model.User {
	u, _ := a.registry.Current()
	return u
}

// State returns the round state.
func (a *App) State() session.State {
	return a.machine.State()
}

// Data returns the active user's records as held in memory.
func (a *App) Data() model.UserData {
	return a.data
}

// StartAll starts a round over the whole bank.
func (a *App) StartAll(ctx context.Context) error {
	if a.bank == nil {
		return ErrBankNotLoaded
	}
	set := a.gen.Build(a.bank.Questions(), generator.Options{
		Shuffle:  a.cfg.Shuffle,
		Limit:    a.cfg.Limit,
		ExamBias: generator.ErrorRates(a.data.ExamStats, a.cfg.ExamBias),
	})
	return a.start(ctx, model.ModeAll, "", set)
}

// StartExam starts a round over one exam.
func (a *App) StartExam(ctx context.Context, examID string) error {
	if a.bank == nil {
		return ErrBankNotLoaded
	}
	set := a.gen.Build(a.bank.ByExam(examID), generator.Options{Shuffle: a.cfg.Shuffle, Limit: a.cfg.Limit})
	return a.start(ctx, model.ModeSingleExam, model.ExamLabel(examID), set)
}

// StartReview starts a round over the accumulated wrong set, limited to one
// exam unless examID is empty.
func (a *App) StartReview(ctx context.Context, examID string) error {
	if a.bank == nil {
		return ErrBankNotLoaded
	}
	var set []model.Question
	for _, q := range a.data.WrongQuestions {
		if examID != "" && q.ExamID.Key() != examID {
			continue
		}
		if current, ok := a.bank.Lookup(q.ID); ok {
			q = current
		}
		set = append(set, q)
	}
	label := "Wrong Review"
	if examID != "" {
		label = "Wrong Review: " + model.ExamLabel(examID)
	}
	set = a.gen.Build(set, generator.Options{Shuffle: a.cfg.Shuffle})
	return a.start(ctx, model.ModeWrongReview, label, set)
}

func (a *App) start(ctx context.Context, mode model.Mode, label string, set []model.Question) error {
	err := a.machine.Start(ctx, mode, label, set)
	a.afterRound(ctx)
	a.present()
	return err
}

// Answer grades a choice for the current question.
func (a *App) Answer(ctx context.Context, key string) (session.Result, error) {
	res, err := a.machine.Answer(ctx, key)
	if !res.Accepted {
		return res, err
	}
	if !res.Correct && !containsQuestion(a.data.WrongQuestions, res.Question.ID) {
		a.data.WrongQuestions = append(a.data.WrongQuestions, res.Question)
	}
	a.present()
	return res, err
}

// Next advances to the next question or the round summary.
func (a *App) Next(ctx context.Context) error {
	err := a.machine.Advance(ctx)
	a.afterRound(ctx)
	a.present()
	return err
}

// Flush persists the in-progress round.
func (a *App) Flush(ctx context.Context) error {
	return a.machine.Flush(ctx)
}

// Analysis builds the per-exam analysis, including the live round.
func (a *App) Analysis() stats.Analysis {
	st := a.machine.State()
	var totals, wrongs map[string]int
	if st.Phase == session.InRound {
		totals, wrongs = st.PerExamTotals, st.PerExamWrongs
	}
	analysis := stats.BuildAnalysis(a.data.WrongQuestions, a.data.ExamStats, totals, wrongs)
	if a.presenter != nil {
		a.presenter.ShowAnalysis(analysis)
	}
	return analysis
}

// Users lists the profiles and the active id.
func (a *App) Users() ([]model.User, string) {
	list, current := a.registry.List(), a.registry.CurrentID()
	if a.presenter != nil {
		a.presenter.ShowUserList(list, current)
	}
	return list, current
}

// AddUser creates a profile and switches to it.
func (a *App) AddUser(ctx context.Context, name string) (model.User, error) {
	flushErr := a.machine.Flush(ctx)
	u, err := a.registry.Add(ctx, name)
	if errors.Is(err, users.ErrEmptyName) {
		return u, err
	}
	a.activate(ctx, u.ID)
	a.Users()
	return u, errors.Join(flushErr, err)
}

// SwitchUser saves the current round and activates id, resuming its round.
func (a *App) SwitchUser(ctx context.Context, id string) error {
	if id == a.registry.CurrentID() {
		return nil
	}
	if _, ok := a.registry.Get(id); !ok {
		return fmt.Errorf("%w: user %q", model.ErrNotFound, id)
	}
	flushErr := a.machine.Flush(ctx)
	err := a.registry.Switch(ctx, id)
	restoreErr := a.activate(ctx, id)
	a.Users()
	a.present()
	return errors.Join(flushErr, err, restoreErr)
}

// DeleteUser removes a profile with its records. Deleting the active
// profile activates the first remaining one.
func (a *App) DeleteUser(ctx context.Context, id string) error {
	switched, err := a.registry.Delete(ctx, id)
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, users.ErrLastUser) {
		return err
	}
	var restoreErr error
	if switched {
		restoreErr = a.activate(ctx, a.registry.CurrentID())
		a.present()
	}
	a.Users()
	return errors.Join(err, restoreErr)
}

// ClearHistory purges the active user's records and drops the round.
func (a *App) ClearHistory(ctx context.Context) error {
	id := a.registry.CurrentID()
	a.machine.Reset(id)
	a.data = model.UserData{WrongQuestions: []model.Question{}, ExamStats: map[string]model.ExamStats{}}
	return a.records.ClearHistory(ctx, id)
}

// Export flushes the round and returns the snapshot document.
func (a *App) Export(ctx context.Context) ([]byte, error) {
	if err := a.machine.Flush(ctx); err != nil {
		return nil, err
	}
	snap, err := snapshot.Export(ctx, a.kv)
	if err != nil {
		return nil, err
	}
	return snapshot.Encode(snap)
}

// Import replaces all practice data with raw and reloads everything from storage.
func (a *App) Import(ctx context.Context, raw []byte) (model.Snapshot, error) {
	snap, err := snapshot.Import(ctx, a.kv, raw)
	if err != nil {
		return model.Snapshot{}, err
	}
	loadErr := a.registry.Load(ctx)
	restoreErr := a.activate(ctx, a.registry.CurrentID())
	a.present()
	return snap, errors.Join(loadErr, restoreErr)
}

// activate binds the machine and records to id and resumes its round.
func (a *App) activate(ctx context.Context, id string) error {
	a.machine.Reset(id)
	a.data = a.records.LoadUserData(ctx, id)
	if a.bank == nil {
		return nil
	}
	resumed, err := a.machine.Restore(ctx, a.bank)
	if resumed {
		a.afterRound(ctx)
	}
	return err
}

// afterRound reloads cumulative stats once a round has been committed.
func (a *App) afterRound(ctx context.Context) {
	if a.machine.State().Phase == session.RoundComplete {
		a.data = a.records.LoadUserData(ctx, a.registry.CurrentID())
	}
}

// Present shows the current round, if any, again.
func (a *App) Present() {
	a.present()
}

func (a *App) present() {
	if a.presenter == nil {
		return
	}
	st := a.machine.State()
	switch st.Phase {
	case session.InRound:
		q, _ := st.Current()
		a.presenter.ShowQuestion(QuestionView{
			Question: q,
			Index:    st.Index,
			Total:    len(st.Set),
			Label:    st.DisplayLabel(),
			Answered: st.Answered,
			Chosen:   st.Chosen,
			Correct:  st.Answered && st.Chosen == q.Answer,
		})
	case session.RoundComplete:
		a.presenter.ShowSummary(SummaryView{
			Label:   st.DisplayLabel(),
			Summary: stats.Summarize(len(st.Set), len(st.RoundWrong)),
			Wrong:   st.RoundWrong,
		})
	}
}

func (a *App) newMachine(userID string) *session.Machine {
	return session.New(a.records, userID, session.WithClock(a.now), session.WithSnapshotTTL(a.cfg.SnapshotTTL))
}

func containsQuestion(list []model.Question, id string) bool {
	for _, q := range list {
		if q.ID == id {
			return true
		}
	}
	return false
}
