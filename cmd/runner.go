package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/notifications"
	"github.com/desertthunder/reelx/internal/repositories"
	"github.com/desertthunder/reelx/internal/services"
	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	palette    *formatter.Palette
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Palette    *formatter.Palette
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Palette == nil {
		opts.Palette = formatter.DefaultPalette
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    opts.Palette,
		now:        time.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, notificationsCommand, devServerCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// stack is the client wiring for one command invocation.
type stack struct {
	store  *session.Store
	client *services.Client
	auth   *services.AuthService
	inbox  *notifications.Store
	notes  *services.NotificationService
	closer io.Closer
}

func (s *stack) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// open restores the persisted session and builds the HTTP client around it.
func (r *Runner) open(ctx context.Context) (*stack, error) {
	storage, closer, err := repositories.Open(ctx, r.config)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(storage, r.logger)
	if err := store.Hydrate(ctx); err != nil {
		r.logger.Warn("could not restore session", "error", err)
	}

	client, err := services.NewClient(services.ClientOptions{
		BaseURL:    r.config.API.BaseURL,
		HTTPClient: r.httpClient,
		Session:    store,
		Navigator:  terminalNavigator{logger: r.logger},
		LoginRoute: r.config.API.LoginRoute,
		Timeout:    r.config.API.Timeout(),
		Logger:     r.logger,
	})
	if err != nil {
		closer.Close()
		return nil, err
	}

	inbox := notifications.NewStore()
	notes := services.NewNotificationService(client, inbox, services.NotificationOptions{
		PageSize:      r.config.Notifications.PageSize,
		PrimeInterval: time.Duration(r.config.Notifications.PrimeIntervalSeconds) * time.Second,
		Logger:        r.logger,
	})

	return &stack{
		store:  store,
		client: client,
		auth:   services.NewAuthService(client),
		inbox:  inbox,
		notes:  notes,
		closer: closer,
	}, nil
}

// openAuthenticated is [Runner.open] for commands that need a signed-in session.
func (r *Runner) openAuthenticated(ctx context.Context) (*stack, error) {
	s, err := r.open(ctx)
	if err != nil {
		return nil, err
	}
	if !s.store.IsAuthenticated() {
		s.Close()
		return nil, fmt.Errorf("%w: no saved session", shared.ErrNotAuthenticated)
	}
	return s, nil
}

// terminalNavigator reports a forced sign-out; a CLI has no login screen to show.
type terminalNavigator struct {
	logger *log.Logger
}

func (terminalNavigator) CurrentRoute() string { return "" }

func (n terminalNavigator) Navigate(route string) {
	n.logger.Warn("session ended, sign in again with `reelx auth login`", "route", route)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) write(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func closeQuietly(r *Runner, s *stack) {
	if err := s.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		r.logger.Warn("failed to close storage", "error", err)
	}
}
