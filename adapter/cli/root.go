package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  = slog.Default()
)

type startedAtKey struct{}

var rootCmd = &cobra.Command{
	Use:   "keel",
	Short: "Keel - weighted milestone hierarchies",
	Long: `Keel plans work as weighted hierarchies of milestones,
sub-milestones and tasks.

Sibling weights share a budget of 100, progress rolls up by weight, and
graded task completions are credited to the assignees' KPIs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if verbose {
			logger = observability.NewLogger(observability.LogConfig{
				Level:  observability.LogLevelDebug,
				Format: observability.LogFormatText,
			})
		}
		// Every log line and outbox event of one invocation shares a
		// correlation id.
		ctx := observability.WithCorrelationID(cmd.Context(), "")
		ctx = context.WithValue(ctx, startedAtKey{}, time.Now())
		cmd.SetContext(ctx)
		logger.DebugContext(ctx, "command start", "command", cmd.CommandPath())
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		started, ok := ctx.Value(startedAtKey{}).(time.Time)
		if !ok {
			return
		}
		logger.DebugContext(ctx, "command end",
			"command", cmd.CommandPath(),
			"duration_ms", time.Since(started).Milliseconds(),
		)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

// Execute runs the root command with a background context.
func Execute() {
	ExecuteContext(context.Background())
}

// ExecuteContext runs the root command; commands stop when ctx is canceled.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}
