// Package courier exposes the chat sync core as HTTP Cloud Functions: live chat list
// and message streams over server-sent events, message sending, call initiation and
// push token registration.
package courier

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/klipach/courier/account"
	"github.com/klipach/courier/auth"
	"github.com/klipach/courier/config"
	"github.com/klipach/courier/log"
	"github.com/klipach/courier/logger"
	"github.com/klipach/courier/metrics"
	"github.com/klipach/courier/remote"
)

const logID = "courier"

var (
	serverOnce sync.Once
	server     *Server
	serverErr  error
)

func init() {
	functions.HTTP("Chats", metrics.Instrument("Chats", Chats))
	functions.HTTP("Messages", metrics.Instrument("Messages", Messages))
	functions.HTTP("Calls", metrics.Instrument("Calls", Calls))
	functions.HTTP("Devices", metrics.Instrument("Devices", Devices))
	functions.HTTP("Accounts", metrics.Instrument("Accounts", Accounts))
	functions.HTTP("Metrics", Metrics)
}

func Chats(w http.ResponseWriter, r *http.Request)    { withServer(w, r, (*Server).Chats) }
func Messages(w http.ResponseWriter, r *http.Request) { withServer(w, r, (*Server).Messages) }
func Calls(w http.ResponseWriter, r *http.Request)    { withServer(w, r, (*Server).Calls) }
func Devices(w http.ResponseWriter, r *http.Request)  { withServer(w, r, (*Server).Devices) }
func Accounts(w http.ResponseWriter, r *http.Request) { withServer(w, r, (*Server).Accounts) }

// Metrics serves the Prometheus exposition. Scrapers do not carry Firebase tokens,
// so it is not authenticated.
func Metrics(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}

// withServer builds the shared server on first use. Cloud Functions instances keep
// it, and its remote connections, across requests.
func withServer(w http.ResponseWriter, r *http.Request, handle func(*Server, http.ResponseWriter, *http.Request)) {
	serverOnce.Do(func() {
		server, serverErr = setup(context.Background())
	})
	if serverErr != nil {
		log.LoggerFromContext(r.Context()).Error("error while setting up", slog.String(log.ErrorMsgLogField, serverErr.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	handle(server, w, r)
}

func setup(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	base := slog.New(log.NewCloudLoggingHandler())
	if cfg.LogSink == config.LogSinkCloudLogging {
		projectID, err := cfg.Project(ctx)
		if err != nil {
			return nil, err
		}
		// the client flushes on its own schedule; instances never shut down cleanly
		base, _, err = logger.New(ctx, projectID, logID)
		if err != nil {
			return nil, err
		}
	}
	ctx = log.WithLogger(ctx, base)

	var fbConfig *firebase.Config
	if cfg.DatabaseURL != "" || cfg.ProjectID != "" {
		fbConfig = &firebase.Config{DatabaseURL: cfg.DatabaseURL, ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, fbConfig)
	if err != nil {
		return nil, err
	}

	store, err := newRemote(ctx, cfg, app)
	if err != nil {
		return nil, err
	}
	authClient, err := auth.NewFirebaseVerifier(ctx, app)
	if err != nil {
		return nil, err
	}

	deps := Deps{
		Config:   cfg,
		Remote:   metrics.InstrumentRemote(store),
		Verifier: authClient,
		Users:    account.NewFirebaseUsers(authClient),
		Logger:   base,
	}
	if cfg.Push == config.PushFCM {
		deps.Sender, err = app.Messaging(ctx)
		if err != nil {
			return nil, err
		}
	}
	base.Info("courier ready",
		slog.String("backend", string(cfg.Backend)),
		slog.String("push", string(cfg.Push)),
	)
	return NewServer(deps), nil
}

func newRemote(ctx context.Context, cfg config.Config, app *firebase.App) (remote.Client, error) {
	switch cfg.Backend {
	case config.BackendRTDB:
		client, err := app.Database(ctx)
		if err != nil {
			return nil, err
		}
		return remote.NewFirebase(client, cfg.PollInterval), nil
	case config.BackendFirestore:
		projectID, err := cfg.Project(ctx)
		if err != nil {
			return nil, err
		}
		client, err := firestore.NewClient(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return remote.NewFirestore(client), nil
	case config.BackendPostgres:
		return remote.ConnectPostgres(ctx, cfg.PostgresDSN)
	}
	return remote.NewMemory(), nil
}
