package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/psds-microservice/ticket-webhook/internal/agent"
	"github.com/psds-microservice/ticket-webhook/internal/config"
	"github.com/psds-microservice/ticket-webhook/internal/database"
	"github.com/psds-microservice/ticket-webhook/internal/handler"
	"github.com/psds-microservice/ticket-webhook/internal/kafka"
	"github.com/psds-microservice/ticket-webhook/internal/messaging"
	"github.com/psds-microservice/ticket-webhook/internal/metrics"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	"github.com/psds-microservice/ticket-webhook/internal/router"
	"github.com/psds-microservice/ticket-webhook/internal/service"
	"github.com/psds-microservice/ticket-webhook/internal/store"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// API is the webhook server (api mode). Downstream clients that fail to
// build at startup are left nil; the handlers then answer with
// configuration errors instead of the process exiting.
type API struct {
	cfg     *config.Config
	log     *zap.Logger
	httpSrv *http.Server

	store    store.Store
	agent    *agent.Dialogflow
	producer *kafka.Producer
}

// NewAPI builds every client once and wires them into the router.
func NewAPI(ctx context.Context, cfg *config.Config, log *zap.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	reportConfig(cfg, log)

	a := &API{cfg: cfg, log: log}

	st, err := OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("ticket store unavailable", zap.String("backend", cfg.TicketStore), zap.Error(err))
	} else {
		a.store = st
	}

	// Interface values stay untyped nil when a client is missing so handler
	// nil checks see it.
	var ag agent.Agent
	if df, err := agent.NewDialogflow(ctx, agent.Settings{
		ProjectID: cfg.Agent.ProjectID,
		AgentID:   cfg.Agent.AgentID,
		Location:  cfg.Agent.Location,
	}, log, GoogleOptions(cfg)...); err != nil {
		log.Error("dialogflow agent unavailable", zap.Error(err))
	} else {
		a.agent = df
		ag = df
	}

	var sender messaging.Sender
	if tw, err := messaging.NewTwilio(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, log); err != nil {
		log.Error("twilio transport unavailable", zap.Error(err))
	} else {
		sender = tw
	}

	a.producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var events kafka.TicketEventProducer
	if a.producer.Enabled() {
		events = a.producer
	}
	ticketSvc := service.NewTicketService(a.store, events, m, log)

	h := router.New(router.Deps{
		Tickets: handler.NewTicketHandler(ticketSvc, log),
		Relay:   handler.NewRelayHandler(ag, sender, cfg.LanguageCode, m, log),
		Health: handler.NewHealthHandler(map[string]bool{
			"store":     a.store != nil,
			"agent":     ag != nil,
			"transport": sender != nil,
		}),
		Metrics:  m,
		Gatherer: reg,
		Log:      log,
	})

	a.httpSrv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

// OpenStore builds the configured ticket store backend.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.TicketStore {
	case config.StorePostgres:
		db, err := database.Open(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		tables := make(map[model.Channel]string, len(model.Channels))
		for _, ch := range model.Channels {
			tables[ch] = cfg.PostgresTable(ch)
		}
		return store.NewPostgres(db, tables), nil
	case config.StoreBigQuery:
		tables := make(map[model.Channel]store.TableRef, len(model.Channels))
		for _, ch := range model.Channels {
			tables[ch] = store.TableRef{
				Project: cfg.BigQuery.ProjectID,
				Dataset: cfg.BigQuery.DatasetID,
				Table:   cfg.BigQueryTable(ch),
			}
		}
		bq, err := store.NewBigQuery(ctx, cfg.BigQuery.ProjectID, tables, log, GoogleOptions(cfg)...)
		if err != nil {
			return nil, fmt.Errorf("bigquery: %w", err)
		}
		return bq, nil
	}
	return nil, fmt.Errorf("unknown ticket store %q", cfg.TicketStore)
}

// GoogleOptions returns the client options shared by every Google client.
func GoogleOptions(cfg *config.Config) []option.ClientOption {
	if cfg.ServiceAccountPath == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.ServiceAccountPath)}
}

// reportConfig logs which settings are present without printing secrets.
func reportConfig(cfg *config.Config, log *zap.Logger) {
	loaded := func(v string) string {
		if v == "" {
			return "no"
		}
		return "yes"
	}
	lang := cfg.LanguageCode
	if lang == "" {
		lang = "not set, using " + agent.DefaultLanguage
	}
	log.Info("configuration loaded",
		zap.String("twilio_account_sid", loaded(cfg.Twilio.AccountSID)),
		zap.String("twilio_auth_token", loaded(cfg.Twilio.AuthToken)),
		zap.String("language_code", lang),
		zap.String("ticket_store", cfg.TicketStore),
		zap.String("project_id", loaded(cfg.BigQuery.ProjectID)),
		zap.String("bigquery_dataset_id", loaded(cfg.BigQuery.DatasetID)),
		zap.String("bigquery_table_id", loaded(cfg.BigQuery.TableID)),
		zap.String("bigquery_table_id_wa", loaded(cfg.BigQuery.TableIDWhatsApp)),
		zap.String("agent_id", loaded(cfg.Agent.AgentID)),
		zap.String("service_account_path", loaded(cfg.ServiceAccountPath)),
		zap.String("kafka", loaded(cfg.KafkaTopicTicket)),
	)
	missing := cfg.Missing()
	services := make([]string, 0, len(missing))
	for s := range missing {
		services = append(services, s)
	}
	sort.Strings(services)
	for _, s := range services {
		log.Warn("missing configuration", zap.String("service", s), zap.Strings("settings", missing[s]))
	}
}

// Run serves HTTP until ctx is canceled, then shuts down and closes clients.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening", zap.String("addr", a.httpSrv.Addr))
	a.log.Info("endpoints",
		zap.String("swagger", base+"/swagger"),
		zap.String("health", base+"/health"),
		zap.String("metrics", base+"/metrics"),
		zap.String("relay", base+"/twilio-dialogflowcx"),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	a.close()
	return runErr
}

func (a *API) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("close store", zap.Error(err))
		}
	}
	if a.agent != nil {
		if err := a.agent.Close(); err != nil {
			a.log.Warn("close agent", zap.Error(err))
		}
	}
	if err := a.producer.Close(); err != nil {
		a.log.Warn("close kafka producer", zap.Error(err))
	}
}
