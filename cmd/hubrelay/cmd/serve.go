package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jpillora/backoff"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adamsanghera/hubrelay/pkg/log"
	"github.com/adamsanghera/hubrelay/pkg/subscriber"
	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage"
	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage/memory"
	"github.com/adamsanghera/hubrelay/pkg/subscriber/storage/sql"
)

var serveFlags struct {
	config      string
	listen      string
	clientID    string
	callbackURL string
	hubURL      string
	topics      []string
	helixBase   string
	debug       bool
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the callback server and subscribes the configured topics",
	Long: `Runs the callback server and subscribes the configured topics.
Every verified notification is logged. On SIGINT or SIGTERM every
subscription is cancelled at the hub before the server stops.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadServeConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.StringVarP(&serveFlags.config, "config", "c", "", "path to the yaml config file")
	f.StringVar(&serveFlags.listen, "listen", "", "address the callback server listens on")
	f.StringVar(&serveFlags.clientID, "client-id", "", "client id sent to the hub")
	f.StringVar(&serveFlags.callbackURL, "callback-url", "", "public url the hub delivers to")
	f.StringVar(&serveFlags.hubURL, "hub-url", "", "hub subscription requests are sent to")
	f.StringArrayVarP(&serveFlags.topics, "topic", "t", nil, "topic_url=event to subscribe, may be repeated")
	f.StringVar(&serveFlags.helixBase, "helix-base-url", "", "api root the helix topic flags are built against")
	for _, kind := range sortedKinds() {
		f.StringArray(kind, nil, fmt.Sprintf("id=event to subscribe to %s notifications for id, may be repeated", kind))
	}
	f.BoolVar(&serveFlags.debug, "debug", false, "development logging")
}

func sortedKinds() []string {
	kinds := make([]string, 0, len(helixKinds))
	for kind := range helixKinds {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// loadServeConfig reads the config file and lays the flags that were set over it.
func loadServeConfig(cmd *cobra.Command) (*Config, error) {
	cfg, err := ReadConfig(serveFlags.config)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("listen") {
		cfg.Listen = serveFlags.listen
	}
	if f.Changed("client-id") {
		cfg.Subscriber.ClientID = serveFlags.clientID
	}
	if f.Changed("callback-url") {
		cfg.Subscriber.CallbackURL = serveFlags.callbackURL
	}
	if f.Changed("hub-url") {
		cfg.Subscriber.HubURL = serveFlags.hubURL
	}
	if f.Changed("debug") {
		cfg.Log.Debug = serveFlags.debug
	}
	for _, v := range serveFlags.topics {
		t, err := parseTopicFlag(v)
		if err != nil {
			return nil, err
		}
		cfg.Subscriptions = append(cfg.Subscriptions, t)
	}
	if f.Changed("helix-base-url") {
		cfg.Helix.BaseURL = serveFlags.helixBase
	}
	for _, kind := range sortedKinds() {
		vals, err := f.GetStringArray(kind)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			t, err := parseTopicFlag(v)
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", kind, err)
			}
			cfg.Helix.Subscriptions = append(cfg.Helix.Subscriptions, HelixTopic{Kind: kind, ID: t.Topic, Event: t.Event})
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newStorage(cfg StorageConfig) (storage.Storage, error) {
	switch cfg.Driver {
	case storageSQLite:
		return sql.New(&cfg.SQLite)
	default:
		return memory.New(), nil
	}
}

func serve(ctx context.Context, cfg *Config) error {
	logger, err := log.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	st, err := newStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("cannot open storage: %w", err)
	}
	defer st.Close()

	opts := []subscriber.Option{
		subscriber.WithLogger(logger),
		subscriber.WithStorage(st),
	}
	if cfg.DispatchWorkers > 0 {
		pool, err := ants.NewPool(cfg.DispatchWorkers)
		if err != nil {
			return fmt.Errorf("cannot create dispatch pool: %w", err)
		}
		defer pool.Release()
		opts = append(opts, subscriber.WithDispatchPool(pool))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts = append(opts, subscriber.WithMetrics(reg))

	sub, err := subscriber.New(&cfg.Subscriber, opts...)
	if err != nil {
		return err
	}
	subscriptions := cfg.Topics()
	for _, event := range eventNames(subscriptions) {
		sub.On(event, logEvent(logger))
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(cfg.RoutePath(), sub, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("callback server listening", zap.String("addr", cfg.Listen), zap.String("path", cfg.RoutePath()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// The hub verifies synchronously, so the server has to be up before the first request goes out.
	for _, t := range subscriptions {
		id, err := subscribeWithRetry(ctx, sub, cfg.Retry, t, logger)
		if err != nil {
			logger.Error("giving up on topic", zap.String("topic", t.Topic), zap.Error(err))
			continue
		}
		logger.Info("subscribed", zap.String("id", id), zap.String("topic", t.Topic), zap.String("event", t.Event))
	}

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error("callback server failed", zap.Error(err))
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Unsubscribe while the server can still answer the hub's verification requests.
	if err := sub.Destroy(shutdownCtx); err != nil {
		logger.Warn("destroy incomplete", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cannot shut down callback server: %w", err)
	}
	return nil
}

func newRouter(callbackPath string, sub *subscriber.Subscriber, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Handle(callbackPath, sub).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return r
}

// subscribeWithRetry retries failed subscription requests until attempts run out or ctx is done.
func subscribeWithRetry(ctx context.Context, sub *subscriber.Subscriber, cfg RetryConfig, t TopicConfig, logger *zap.Logger) (string, error) {
	b := &backoff.Backoff{
		Min:    cfg.Min,
		Max:    cfg.Max,
		Factor: 2,
		Jitter: true,
	}
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		id, err := sub.Subscribe(ctx, t.Topic, t.Event)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}
		wait := b.Duration()
		logger.Warn("subscription failed, retrying",
			zap.String("topic", t.Topic),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

func eventNames(topics []TopicConfig) []string {
	seen := make(map[string]struct{}, len(topics))
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		if _, ok := seen[t.Event]; ok {
			continue
		}
		seen[t.Event] = struct{}{}
		names = append(names, t.Event)
	}
	return names
}

func logEvent(logger *zap.Logger) subscriber.Handler {
	return func(ev subscriber.Event) {
		logger.Info("notification",
			zap.String("event", ev.Name),
			zap.String("id", ev.SubscriptionID),
			zap.ByteString("data", ev.Data))
	}
}
