package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-approval"
	"github.com/goliatone/go-approval/activitymap"
	"github.com/goliatone/go-approval/adapters/metrics"
	"github.com/goliatone/go-approval/config"
	"github.com/goliatone/go-approval/provider/local"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config    *config.Config
	logger    *glog.BaseLogger
	db        *bun.DB
	store     *approval.BunStore
	accounts  *local.Provider
	verifier  *local.IDTokenVerifier
	allowList *approval.AllowList
	srv       *fiber.App
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	configFile := flag.String("config", "", "path to a config file")
	envFile := flag.String("env", "", "path to a .env file")
	flag.Parse()

	loader := config.NewLoader(config.WithConfigFile(*configFile), config.WithEnvFile(*envFile))
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lgr := newLogger(cfg.Server.Debug)

	app := &App{config: cfg, logger: lgr}
	if cfg.Server.Debug {
		app.GetLogger("config").Debug(print.MaybePrettyJSON(cfg.Approval))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := WithPersistence(ctx, app); err != nil {
		app.GetLogger("app").Error("persistence setup failed", "error", err)
		os.Exit(1)
	}
	defer app.db.Close()

	if err := WithIdentity(ctx, app); err != nil {
		app.GetLogger("app").Error("identity setup failed", "error", err)
		os.Exit(1)
	}
	if app.verifier != nil {
		defer app.verifier.Close()
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		app.GetLogger("app").Error("http setup failed", "error", err)
		os.Exit(1)
	}

	loader.Watch(func(next *config.Config) {
		app.allowList.Replace(next.GetAdminAllowList())
		app.GetLogger("config").Info("admin allow-list reloaded", "entries", app.allowList.Len())
	}, func(err error) {
		app.GetLogger("config").Warn("config reload rejected", "error", err)
	})

	go func() {
		app.GetLogger("app").Info("listening", "addr", cfg.Server.Addr)
		if err := app.srv.Listen(cfg.Server.Addr); err != nil {
			app.GetLogger("app").Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.srv.ShutdownWithContext(shutdownCtx); err != nil {
		app.GetLogger("app").Error("shutdown failed", "error", err)
	}
}

func newLogger(debug bool) *glog.BaseLogger {
	if debug {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("approval"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("approval"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func WithPersistence(ctx context.Context, app *App) error {
	sqldb, err := sql.Open(sqliteshim.ShimName, app.config.Database.DSN)
	if err != nil {
		return err
	}
	sqldb.SetMaxOpenConns(1)

	app.db = bun.NewDB(sqldb, sqlitedialect.New())
	app.store = approval.NewBunStore(app.db)

	return app.store.CreateSchema(ctx)
}

func WithIdentity(ctx context.Context, app *App) error {
	cfg := app.config

	tokens := approval.NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		approval.WithTokenLogger(app.GetLogger("tokens")),
		approval.WithClaimsDecorator(approval.SubmissionStatusDecorator(app.store, app.GetLogger("tokens"))),
	)

	opts := []local.Option{local.WithLogger(app.GetLogger("accounts"))}
	if cfg.Google.ClientID != "" {
		verifier, err := local.NewGoogleVerifier(cfg.Google.ClientID, cfg.Google.JWKSURL, app.GetLogger("jwks"))
		if err != nil {
			return err
		}
		app.verifier = verifier
		opts = append(opts, local.WithFederatedVerifier(verifier))
	}

	app.accounts = local.New(app.db, tokens, opts...)
	return app.accounts.CreateSchema(ctx)
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.config

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	metricsSink, err := metrics.NewSink(registry)
	if err != nil {
		return err
	}

	activityLogger := app.GetLogger("activity")
	sink := approval.MultiSink(
		metricsSink,
		activitymap.Sink(func(_ context.Context, record activitymap.Record) error {
			activityLogger.Info(record.Verb, "actor", record.ActorID, "object", record.ObjectID, "metadata", record.Metadata)
			return nil
		}),
	)

	app.allowList = approval.NewAllowList(cfg.GetAdminAllowList()...)
	stateMachine := approval.NewSubmissionStateMachine(approval.ParseResubmissionPolicy(cfg.GetResubmissionPolicy()))

	decisions := approval.NewDecisionService(
		app.store,
		app.accounts,
		approval.NewAdminAuthorizer(app.allowList),
		approval.WithDecisionLogger(app.GetLogger("decisions")),
		approval.WithDecisionActivitySink(sink),
		approval.WithDecisionStateMachine(stateMachine),
	)

	submit := approval.NewSubmitRegistrationHandler(
		app.store,
		approval.WithPayloadValidation(cfg.GetValidatePayload()),
		approval.WithSubmissionStateMachine(stateMachine),
		approval.WithSubmitActivitySink(sink),
		approval.WithSubmitLogger(app.GetLogger("registrations")),
	)

	escalation := approval.NewEscalationHandler(
		app.store,
		approval.WithEscalationActivitySink(sink),
		approval.WithEscalationLogger(app.GetLogger("escalations")),
	)

	resolver := approval.NewResolver(app.store, approval.WithResolverLogger(app.GetLogger("resolver")))

	controller := approval.NewApprovalController(app.accounts, app.store, decisions,
		approval.WithControllerLogger(app.GetLogger("http")),
		approval.WithControllerDebug(cfg.Server.Debug),
		approval.WithSubmitHandler(submit),
		approval.WithEscalationHandler(escalation),
		approval.WithControllerResolver(resolver),
	)

	srv := fiber.New(fiber.Config{
		AppName:      "go-approval",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		ErrorHandler: approval.FiberErrorHandler(app.GetLogger("http")),
	})
	srv.Use(recover.New())
	srv.Use(logger.New())
	srv.Use(cors.New())

	srv.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))
	controller.RegisterRoutes(srv)

	app.srv = srv
	resumeOpenApprovals(ctx, app, decisions)
	return nil
}

// resumeOpenApprovals finishes approvals interrupted by a previous crash.
func resumeOpenApprovals(ctx context.Context, app *App, decisions *approval.DecisionService) {
	lgr := app.GetLogger("decisions")
	system := &approval.Caller{UID: "system", Claims: approval.Claims{approval.ClaimApprovalAdmin: true}}

	intents, err := decisions.OpenApprovals(ctx, system)
	if err != nil {
		lgr.Warn("unable to list open approvals", "error", err)
		return
	}

	for _, intent := range intents {
		if err := decisions.ResumeApproval(ctx, system, intent.ID.String()); err != nil {
			lgr.Error("resume approval failed", "intent", intent.ID.String(), "uid", intent.UID, "error", err)
			continue
		}
		lgr.Info("approval resumed", "intent", intent.ID.String(), "uid", intent.UID)
	}
}
