package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"calsync/internal/config"
	"calsync/internal/format"
	"calsync/internal/google"
	"calsync/internal/httpapi"
	"calsync/internal/ics"
	"calsync/internal/models"
	"calsync/internal/obs"
	"calsync/internal/outlook"
	"calsync/internal/store"
	"calsync/internal/syncer"
	"calsync/internal/token"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "calsync",
		Usage: "Push internal events to Google Calendar or Outlook and keep an audit trail.",
		Commands: []*cli.Command{
			authCommand(),
			syncCommand(),
			serveCommand(),
			logCommand(),
			exportCommand(),
			tokenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// app holds the wired components shared by the commands.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	syncer *syncer.Syncer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	tokens := token.NewManager(logger.With("component", "token"), st, oauthConfigs(cfg), &http.Client{Timeout: cfg.HTTPTimeout})
	adapters := syncer.NewAdapterFactory(logger, syncer.AdapterOptions{Timeout: cfg.HTTPTimeout})
	s := syncer.NewSyncer(logger.With("component", "syncer"), st, st, tokens, format.New(cfg.Location()), adapters)

	return &app{cfg: cfg, logger: logger, store: st, syncer: s}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close database", "error", err)
	}
}

func oauthConfigs(cfg config.Config) map[models.Provider]*oauth2.Config {
	return map[models.Provider]*oauth2.Config{
		models.ProviderGoogle:  google.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL),
		models.ProviderOutlook: outlook.OAuthConfig(cfg.Outlook.ClientID, cfg.Outlook.ClientSecret, cfg.Outlook.Tenant, cfg.Outlook.RedirectURL),
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Connect a calendar account and store it as the account's active integration.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "provider", Required: true, Usage: "google or outlook"},
			&cli.StringFlag{Name: "account", Required: true, Usage: "Account ID that owns the integration."},
			&cli.StringFlag{Name: "calendar-id", Usage: "Target calendar. Empty means the provider's default calendar."},
		},
		Action: func(c *cli.Context) error {
			p, err := models.ParseProvider(c.String("provider"))
			if err != nil {
				return err
			}
			a, err := newApp(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()

			conf := oauthConfigs(a.cfg)[p]
			if conf.ClientID == "" {
				return fmt.Errorf("%s client id is not configured", p)
			}
			a.logger.Info("Starting authentication flow.", "provider", p)

			state := uuid.NewString()
			authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)
			if authCode == "" {
				return errors.New("authorization code is required")
			}

			ctx := context.WithValue(c.Context, oauth2.HTTPClient, &http.Client{Timeout: a.cfg.HTTPTimeout})
			tok, err := conf.Exchange(ctx, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			cred := &models.Credential{
				AccountID:    c.String("account"),
				Provider:     p,
				CalendarID:   c.String("calendar-id"),
				AccessToken:  tok.AccessToken,
				RefreshToken: tok.RefreshToken,
				Expiry:       tok.Expiry,
			}
			if err := a.store.ActivateCredential(c.Context, cred); err != nil {
				return fmt.Errorf("failed to save integration: %w", err)
			}

			if cred.RefreshToken == "" {
				a.logger.Warn("Provider did not return a refresh token; the account must reconnect when the access token expires.")
			}
			a.logger.Info("Successfully authenticated and saved integration.", "account", cred.AccountID, "integration", cred.ID)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "account", Required: true, Usage: "Account whose active integration is used."},
		&cli.StringFlag{Name: "event", Usage: "Path to the event JSON file. Use - for stdin."},
		&cli.StringFlag{Name: "external-id", Usage: "Remote event ID from a previous sync."},
	}

	sub := func(op models.Operation, usage string) *cli.Command {
		return &cli.Command{
			Name:  string(op),
			Usage: usage,
			Flags: flags,
			Action: func(c *cli.Context) error {
				var event models.Event
				if path := c.String("event"); path != "" {
					ev, err := readEvent(path)
					if err != nil {
						return err
					}
					event = ev
				} else if op != models.OperationDelete {
					return errors.New("--event is required")
				}

				a, err := newApp(c.Context)
				if err != nil {
					return err
				}
				defer a.Close()

				res := a.syncer.Execute(c.Context, c.String("account"), syncer.Request{
					Action:     op,
					Event:      event,
					ExternalID: c.String("external-id"),
				})
				if err := printJSON(res); err != nil {
					return err
				}
				if !res.Success {
					return cli.Exit("", 1)
				}
				return nil
			},
		}
	}

	return &cli.Command{
		Name:  "sync",
		Usage: "Run a single sync action against the account's connected calendar.",
		Subcommands: []*cli.Command{
			sub(models.OperationCreate, "Create the event on the remote calendar."),
			sub(models.OperationUpdate, "Update the remote event, creating it if it no longer exists."),
			sub(models.OperationDelete, "Delete the remote event. Already-deleted events count as success."),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the sync API over HTTP.",
		Action: func(c *cli.Context) error {
			a, err := newApp(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()

			identity, err := httpapi.NewIdentity(a.cfg.Server.AuthSecret)
			if err != nil {
				return err
			}
			obs.Init()

			api := httpapi.New(a.logger.With("component", "http"), a.syncer, a.store, a.store, identity, httpapi.Options{
				RateLimitPerSecond: a.cfg.Server.RateLimitPerSecond,
				RateLimitBurst:     a.cfg.Server.RateLimitBurst,
			})
			srv := &http.Server{
				Addr:              a.cfg.Server.ListenAddr,
				Handler:           api.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				// A sync may spend HTTPTimeout on the refresh and again on each remote call.
				WriteTimeout: 3*a.cfg.HTTPTimeout + 5*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("Listening.", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down.")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func logCommand() *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "Show recent sync attempts for an account.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Required: true},
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: func(c *cli.Context) error {
			a, err := newApp(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.store.ListRecords(c.Context, c.String("account"), c.Int("limit"))
			if err != nil {
				return err
			}
			for _, r := range records {
				line := fmt.Sprintf("%s  %-7s %-6s requested=%s event=%s", r.CreatedAt.Local().Format(time.DateTime), r.Outcome, r.Operation, r.RequestedOperation, r.SourceEventID)
				if r.ExternalID != nil {
					line += " external=" + *r.ExternalID
				}
				if r.Error != nil {
					line += " error=" + *r.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Print an event as iCalendar, formatted exactly as it would be synced.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "event", Required: true, Usage: "Path to the event JSON file. Use - for stdin."},
			&cli.StringFlag{Name: "uid", Usage: "UID for the VEVENT. Defaults to a random one."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			event, err := readEvent(c.String("event"))
			if err != nil {
				return err
			}
			uid := c.String("uid")
			if uid == "" {
				uid = ics.GenerateUID()
			}
			data, err := ics.Encode(format.New(cfg.Location()).Format(event), uid)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a caller token for the HTTP API.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Required: true},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			identity, err := httpapi.NewIdentity(cfg.Server.AuthSecret)
			if err != nil {
				return err
			}
			tok, err := identity.Issue(c.String("account"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
}

func readEvent(path string) (models.Event, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to read event: %w", err)
	}
	var event models.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return models.Event{}, fmt.Errorf("failed to parse event JSON: %w", err)
	}
	return event, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
