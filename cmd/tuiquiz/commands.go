package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/tuiquiz/internal/bank"
	"github.com/verte-zerg/tuiquiz/internal/model"
	"github.com/verte-zerg/tuiquiz/internal/records"
	"github.com/verte-zerg/tuiquiz/internal/snapshot"
	"github.com/verte-zerg/tuiquiz/internal/stats"
	"github.com/verte-zerg/tuiquiz/internal/statsui"
)

var (
	usersDeleteYes bool

	statsPlain bool
	statsUser  string

	clearYes bool

	exportOut       string
	exportClipboard bool

	importClipboard bool
	importYes       bool
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List and manage users",
		Args:  cobra.NoArgs,
		RunE:  runUsersListCmd,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE:  runUsersListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a user and switch to it",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUsersAddCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "switch <id|name>",
		Short: "Switch the active user",
		Args:  cobra.ExactArgs(1),
		RunE:  runUsersSwitchCmd,
	})
	deleteCmd := &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a user and all of their records",
		Args:  cobra.ExactArgs(1),
		RunE:  runUsersDeleteCmd,
	}
	deleteCmd.Flags().BoolVar(&usersDeleteYes, "yes", false, "confirm deletion")
	cmd.AddCommand(deleteCmd)
	return cmd
}

func runUsersListCmd(cmd *cobra.Command, _ []string) error {
	a, _, closeFn, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	list, current := a.Users()
	return writeUsers(cmd.OutOrStdout(), list, current)
}

func writeUsers(w io.Writer, list []model.User, current string) error {
	for _, u := range list {
		marker := " "
		if u.ID == current {
			marker = "*"
		}
		created := ""
		if !u.CreatedAt.IsZero() {
			created = u.CreatedAt.Local().Format("2006-01-02")
		}
		if _, err := fmt.Fprintf(w, "%s %s  %-20s %s\n", marker, u.ID, u.Name, created); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runUsersAddCmd(cmd *cobra.Command, args []string) error {
	a, _, closeFn, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	u, err := a.AddUser(context.Background(), strings.Join(args, " "))
	if u.ID == "" {
		return err
	}
	if err != nil {
		logErrf("warning: %v\n", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", u.Name, u.ID)
	return err
}

func runUsersSwitchCmd(cmd *cobra.Command, args []string) error {
	a, _, closeFn, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	list, _ := a.Users()
	u, err := resolveUser(list, args[0])
	if err != nil {
		return err
	}
	if err := a.SwitchUser(context.Background(), u.ID); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s\n", u.Name)
	return err
}

func runUsersDeleteCmd(cmd *cobra.Command, args []string) error {
	if !usersDeleteYes {
		return fmt.Errorf("deleting a user removes all of their records; rerun with --yes")
	}
	a, _, closeFn, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	list, _ := a.Users()
	u, err := resolveUser(list, args[0])
	if err != nil {
		return err
	}
	if err := a.DeleteUser(context.Background(), u.ID); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s; active user is %s\n", u.Name, a.CurrentUser().Name)
	return err
}

// resolveUser matches arg against ids first, then unique names.
func resolveUser(list []model.User, arg string) (model.User, error) {
	for _, u := range list {
		if u.ID == arg {
			return u, nil
		}
	}
	var matches []model.User
	for _, u := range list {
		if strings.EqualFold(u.Name, arg) {
			matches = append(matches, u)
		}
	}
	switch len(matches) {
	case 0:
		return model.User{}, fmt.Errorf("%w: user %q", model.ErrNotFound, arg)
	case 1:
		return matches[0], nil
	default:
		return model.User{}, fmt.Errorf("%w: %d users named %q, use the id", model.ErrValidation, len(matches), arg)
	}
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-exam analysis",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().BoolVar(&statsPlain, "plain", false, "print a plain table instead of the browser")
	cmd.Flags().StringVar(&statsUser, "user", "", "user id or name (default: active user)")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	a, st, closeFn, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	list, current := a.Users()
	userID := current
	if statsUser != "" {
		u, err := resolveUser(list, statsUser)
		if err != nil {
			return err
		}
		userID = u.ID
	}
	rec := records.New(st)
	analysis := stats.BuildReport(ctx, rec, userID)

	if statsPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return stats.RenderAnalysis(cmd.OutOrStdout(), analysis)
	}
	wrong := rec.LoadUserData(ctx, userID).WrongQuestions
	program := tea.NewProgram(statsui.NewModel(analysis, wrong), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the active user's practice history",
		Args:  cobra.NoArgs,
		RunE:  runClearCmd,
	}
	cmd.Flags().BoolVar(&clearYes, "yes", false, "confirm clearing")
	return cmd
}

func runClearCmd(cmd *cobra.Command, _ []string) error {
	if !clearYes {
		return fmt.Errorf("clearing removes wrong questions, stats and the unfinished round; rerun with --yes")
	}
	a, _, closeFn, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := a.ClearHistory(context.Background()); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared history of %s\n", a.CurrentUser().Name)
	return err
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all users and records as JSON",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportOut, "out", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&exportClipboard, "clipboard", false, "copy to the system clipboard")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	a, _, closeFn, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	raw, err := a.Export(context.Background())
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	switch {
	case exportClipboard:
		if err := clipboard.WriteAll(string(raw)); err != nil {
			return fmt.Errorf("failed to copy to clipboard: %w", err)
		}
		logErrln("Snapshot copied to clipboard")
	case exportOut != "":
		if err := writeFileAtomic(exportOut, raw); err != nil {
			return err
		}
		logErrf("Wrote %s\n", exportOut)
	default:
		if _, err := cmd.OutOrStdout().Write(raw); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Replace all users and records with a JSON snapshot",
		Long:  "Replace all users and records with a JSON snapshot read from file, stdin (no file or \"-\") or the clipboard.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runImportCmd,
	}
	cmd.Flags().BoolVar(&importClipboard, "clipboard", false, "read from the system clipboard")
	cmd.Flags().BoolVar(&importYes, "yes", false, "confirm replacing all data")
	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	if !importYes {
		return fmt.Errorf("importing replaces all users and records; rerun with --yes")
	}
	raw, err := readSnapshot(cmd, args)
	if err != nil {
		return err
	}
	if err := snapshot.Validate(raw); err != nil {
		return fmt.Errorf("failed to import: %w", err)
	}
	a, _, closeFn, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	snap, err := a.Import(context.Background(), raw)
	if len(snap.Users) == 0 && err != nil {
		return fmt.Errorf("failed to import: %w", err)
	}
	if err != nil {
		logErrf("warning: %v\n", err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d users; active user is %s\n", len(snap.Users), a.CurrentUser().Name)
	return err
}

func readSnapshot(cmd *cobra.Command, args []string) ([]byte, error) {
	if importClipboard {
		text, err := clipboard.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to read clipboard: %w", err)
		}
		return []byte(text), nil
	}
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return raw, nil
}

func newBankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Inspect or convert question banks",
		Args:  cobra.NoArgs,
		RunE:  runBankInfoCmd,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert an upstream bank into the tuiquiz format",
		Args:  cobra.ExactArgs(2),
		RunE:  runBankConvertCmd,
	})
	return cmd
}

func runBankInfoCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadFileConfig(cmd); err != nil {
		return err
	}
	b, err := bank.Fetch(context.Background(), bankSource)
	if err != nil {
		return bankLoadError(bankSource, err)
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "%s: %d questions\n", bankSource, b.Len()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if n := b.Duplicates(); n > 0 {
		if _, err := fmt.Fprintf(out, "  skipped %d questions with a repeated id\n", n); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	for _, exam := range b.ExamIDs() {
		if _, err := fmt.Fprintf(out, "  %-16s %d\n", model.ExamLabel(exam), len(b.ByExam(exam))); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runBankConvertCmd(cmd *cobra.Command, args []string) error {
	n, err := bank.ConvertFile(args[0], args[1])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Converted %d questions to %s\n", n, args[1])
	return err
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "snapshot-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
