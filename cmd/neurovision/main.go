package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/neurovision/internal/adapters/mcp"
	"github.com/kirillkom/neurovision/internal/adapters/tui"
	"github.com/kirillkom/neurovision/internal/bootstrap"
	"github.com/kirillkom/neurovision/internal/config"
	"github.com/kirillkom/neurovision/internal/core/domain"
	"github.com/kirillkom/neurovision/internal/observability/logging"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 3 * time.Second
)

type rootOptions struct {
	inferenceURL string
	timeout      time.Duration
	logLevel     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "neurovision",
		Short:         "Brain MRI tumor classification client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.inferenceURL, "inference-url", "", "inference endpoint (overrides INFERENCE_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "request timeout (overrides INFERENCE_TIMEOUT_SECONDS)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")

	root.AddCommand(newDiagnoseCmd(opts))
	root.AddCommand(newTUICmd(opts))
	root.AddCommand(newMCPCmd(opts))
	return root
}

func loadApp(ctx context.Context, opts *rootOptions, logOut io.Writer, service string) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.inferenceURL != "" {
		cfg.InferenceURL = opts.inferenceURL
	}
	if opts.timeout > 0 {
		cfg.InferenceTimeoutSeconds = int((opts.timeout + time.Second - 1) / time.Second)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger := logging.New(logOut, service, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return bootstrap.New(ctx, cfg, logger)
}

func newDiagnoseCmd(opts *rootOptions) *cobra.Command {
	var includeImages bool

	cmd := &cobra.Command{
		Use:   "diagnose <image>",
		Short: "Submit one image and print the settled session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := loadApp(ctx, opts, cmd.ErrOrStderr(), "cli")
			if err != nil {
				return err
			}
			defer closeApp(app, shutdownTimeout)

			image, err := app.LoadImage(args[0])
			if err != nil {
				return err
			}
			if err := app.Session.SelectFile(ctx, image); err != nil {
				return err
			}
			if !app.Session.Submit(ctx) {
				return fmt.Errorf("session refused submission in state %s", app.Session.Snapshot().State)
			}
			if err := app.Session.WaitSettled(ctx); err != nil {
				return fmt.Errorf("wait for diagnosis: %w", err)
			}

			snap := app.Session.Snapshot()
			var out any = snap
			if !includeImages {
				out = withoutImages(snap)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if snap.State == domain.StateFailed {
				return fmt.Errorf("diagnosis failed: %s", snap.ErrorMessage)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeImages, "include-images", false, "keep preview and annotated image payloads in the output")
	return cmd
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "tui [image]",
		Short: "Run the terminal interface",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var logOut io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				logOut = f
			}

			app, err := loadApp(cmd.Context(), opts, logOut, "tui")
			if err != nil {
				return err
			}
			defer closeApp(app, shutdownTimeout)

			initialPath := ""
			if len(args) == 1 {
				initialPath = args[0]
			}
			return tui.Run(cmd.Context(), app.Session, app.LoadImage, initialPath)
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file instead of discarding them")
	return cmd
}

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve session tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context(), opts, cmd.ErrOrStderr(), "mcp")
			if err != nil {
				return err
			}
			defer closeApp(app, shutdownTimeout)

			return mcpadapter.Serve(mcpadapter.NewTools(app.Session, app.LoadImage), version)
		},
	}
}

// cliSnapshot is a snapshot with inline image payloads stripped.
type cliSnapshot struct {
	domain.Snapshot
	PreviewOmitted bool `json:"preview_omitted,omitempty"`
}

func withoutImages(snap domain.Snapshot) cliSnapshot {
	out := cliSnapshot{Snapshot: snap, PreviewOmitted: snap.PreviewHandle != ""}
	out.PreviewHandle = ""
	if snap.Result != nil {
		result := *snap.Result
		result.AnnotatedImage = ""
		out.Result = &result
	}
	return out
}

// closeApp bounds how long shutdown waits for an in-flight request.
func closeApp(app *bootstrap.App, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	app.Close(ctx)
}
