// Package main provides the CLI entrypoint for tuiquiz.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/tuiquiz/internal/app"
	"github.com/verte-zerg/tuiquiz/internal/bank"
	"github.com/verte-zerg/tuiquiz/internal/config"
	"github.com/verte-zerg/tuiquiz/internal/session"
	"github.com/verte-zerg/tuiquiz/internal/store"
	"github.com/verte-zerg/tuiquiz/internal/tui"
)

const (
	defaultLimit           = 0
	defaultExamBias        = 0.0
	defaultSnapshotTTLDays = int(session.DefaultSnapshotTTL / (24 * time.Hour))
)

var (
	configPath string
	bankSource string
	dbPath     string

	quizShuffle     bool
	quizLimit       int
	quizExamBias    float64
	quizTranslation bool
	snapshotTTLDays int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tuiquiz",
		Short:         "TUI multiple-choice exam trainer",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runQuizCmd,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&bankSource, "bank", config.DefaultBankPath(), "question bank file or http(s) URL")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "database path")

	rootCmd.Flags().BoolVar(&quizShuffle, "shuffle", false, "shuffle questions")
	rootCmd.Flags().IntVar(&quizLimit, "limit", defaultLimit, "max questions per round (0 = all)")
	rootCmd.Flags().Float64Var(&quizExamBias, "exam-bias", defaultExamBias, "favor exams with high error rates in shuffled rounds")
	rootCmd.Flags().BoolVar(&quizTranslation, "translation", false, "show option translations after answering")
	rootCmd.Flags().IntVar(&snapshotTTLDays, "snapshot-ttl-days", defaultSnapshotTTLDays, "days an unfinished round stays resumable")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newUsersCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newBankCmd())

	return rootCmd
}

func runQuizCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	q := fileCfg.Quiz
	applyBoolConfig(cmd, "shuffle", &quizShuffle, q.Shuffle)
	applyIntConfig(cmd, "limit", &quizLimit, q.Limit)
	applyFloatConfig(cmd, "exam-bias", &quizExamBias, q.ExamBias)
	applyBoolConfig(cmd, "translation", &quizTranslation, q.ShowTranslation)
	applyIntConfig(cmd, "snapshot-ttl-days", &snapshotTTLDays, q.SnapshotTTLDays)
	if err := validateQuizFlags(); err != nil {
		return err
	}

	ctx := context.Background()
	b, err := bank.Fetch(ctx, bankSource)
	if err != nil {
		logErrf("%v\n", bankLoadError(bankSource, err))
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	a := app.New(st, nil, app.WithConfig(app.Config{
		Shuffle:     quizShuffle,
		Limit:       quizLimit,
		ExamBias:    quizExamBias,
		SnapshotTTL: time.Duration(snapshotTTLDays) * 24 * time.Hour,
	}))
	if err := a.Init(ctx); err != nil {
		logErrf("failed to save users: %v\n", err)
	}

	m := tui.NewModel(ctx, a, tui.Options{ShowTranslation: quizTranslation})
	if b != nil {
		if _, err := a.SetBank(ctx, b); err != nil {
			logErrf("failed to restore unfinished round: %v\n", err)
		}
	}
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	if err := a.Flush(ctx); err != nil {
		logErrf("failed to save unfinished round: %v\n", err)
	}
	return nil
}

// openApp opens the database and an App bound to it without a bank.
func openApp(cmd *cobra.Command) (*app.App, *store.Store, func(), error) {
	if _, err := loadFileConfig(cmd); err != nil {
		return nil, nil, nil, err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open db: %w", err)
	}
	closeFn := func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}
	a := app.New(st, nil)
	if err := a.Init(context.Background()); err != nil {
		logErrf("failed to save users: %v\n", err)
	}
	return a, st, closeFn, nil
}

// loadFileConfig reads the config file and applies the shared path keys.
func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "bank", &bankSource, fileCfg.Quiz.Bank)
	applyStringConfig(cmd, "db", &dbPath, fileCfg.Quiz.DB)
	return fileCfg, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# tuiquiz configuration
# Uncomment a value to enable it. CLI flags override config values.

[quiz]
# bank = %q   # Question bank file (.json/.yaml) or http(s) URL
# db = %q     # Database path
# shuffle = false            # Shuffle questions
# limit = %d                  # Max questions per round (0 = all)
# exam-bias = %.1f            # Favor exams with high error rates in shuffled rounds
# snapshot-ttl-days = %d      # Days an unfinished round stays resumable
# show-translation = false   # Show option translations after answering
`,
		config.DefaultBankPath(),
		config.DefaultDBPath(),
		defaultLimit,
		defaultExamBias,
		defaultSnapshotTTLDays,
	)
}

func validateQuizFlags() error {
	if quizLimit < 0 {
		return fmt.Errorf("--limit must be >= 0")
	}
	if quizExamBias < 0 {
		return fmt.Errorf("--exam-bias must be >= 0")
	}
	if snapshotTTLDays <= 0 {
		return fmt.Errorf("--snapshot-ttl-days must be > 0")
	}
	return nil
}

func bankLoadError(src string, err error) error {
	lines := []string{
		fmt.Sprintf("failed to load question bank: %v", err),
		fmt.Sprintf("expected question bank at: %s", src),
	}
	if errors.Is(err, os.ErrNotExist) {
		lines = append(lines,
			"Set it with: tuiquiz --bank <file-or-url>",
			"or add `bank = \"...\"` under [quiz] in: tuiquiz config",
			"Convert an upstream bank with: tuiquiz bank convert <in> <out>",
		)
	}
	return fmt.Errorf("%s", strings.Join(lines, "\n"))
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
