// Command cbctl drives a ContentBuddy service from the terminal: slice a
// script, generate every asset, preview the timeline and hand off an export.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/contentbuddy/contentbuddy/internal/client"
	"github.com/contentbuddy/contentbuddy/internal/config"
	"github.com/contentbuddy/contentbuddy/internal/project"
)

var version = "0.1.0-dev"

type globalFlags struct {
	configPath string
	server     string
	session    string
	timeout    time.Duration
	verbose    bool
}

// app is shared by every subcommand after the root's PersistentPreRunE.
type app struct {
	flags  globalFlags
	cfg    config.Config
	client *client.Client
	logger *slog.Logger

	outMu sync.Mutex
	out   io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "cbctl",
		Short:         "Script-to-slideshow pipeline client",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.SetOut(out)
	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "Configuration file (defaults plus CB_* environment when empty)")
	pf.StringVar(&a.flags.server, "server", "", "Service base URL (overrides client.base_url)")
	pf.StringVar(&a.flags.session, "session", "", "Session id sent with every request")
	pf.DurationVar(&a.flags.timeout, "timeout", 0, "HTTP timeout (overrides client.timeout_ms)")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Log batch and playback progress to stderr")

	root.AddCommand(
		newRunCmd(a),
		newPreviewCmd(a),
		newDictCmd(a),
		newExportCmd(a),
		newAudioCmd(a),
		newStylesCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print the cbctl version",
			// version needs no config or server.
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func (a *app) init() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.flags.verbose {
		level = slog.LevelInfo
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	base := cfg.Client.BaseURL
	if a.flags.server != "" {
		base = a.flags.server
	}
	timeout := time.Duration(cfg.Client.TimeoutMS) * time.Millisecond
	if a.flags.timeout > 0 {
		timeout = a.flags.timeout
	}
	opts := []client.Option{client.WithTimeout(timeout)}
	if a.flags.session != "" {
		opts = append(opts, client.WithSessionID(a.flags.session))
	}
	a.client = client.New(base, opts...)
	return nil
}

// printf is safe from playback and store callbacks.
func (a *app) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

// readInput reads a file, or stdin for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func loadProject(path string) (project.State, error) {
	data, err := readInput(path)
	if err != nil {
		return project.State{}, fmt.Errorf("read project: %w", err)
	}
	state := project.Initial()
	if err := json.Unmarshal(data, &state); err != nil {
		return project.State{}, fmt.Errorf("parse project: %w", err)
	}
	if state.Assets == nil {
		state.Assets = map[string]project.SegmentAssets{}
	}
	return state, nil
}

func saveProject(path string, state project.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
