package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"threesisters/members-service/internal/config"
	"threesisters/members-service/internal/httpapi"
	"threesisters/members-service/internal/membership"
	"threesisters/members-service/internal/square"
	"threesisters/members-service/internal/storage"
	"threesisters/members-service/internal/websocket"
	"threesisters/members-service/pkg/contracts"
	"threesisters/members-service/pkg/messaging"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

const outboxTable = "member_outbox"

type countStore interface {
	membership.Counter
	membership.Ledger
	membership.PaymentHistory
	httpapi.CountReader
}

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	hub       *websocket.Hub
	publisher messaging.Publisher
	consumer  *messaging.Consumer
	outbox    *messaging.OutboxDispatcher
	httpSrv   *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, hub: websocket.NewHub()}

	var counts countStore
	switch cfg.Store {
	case config.StoreMemory:
		mem := storage.NewMemoryStore(decimal.Zero)
		mem.OnIncrement(a.hub.BroadcastCount)
		counts = mem
	case config.StorePostgres:
		if err := a.connectPostgres(ctx); err != nil {
			return nil, err
		}
		counts = pgCounts{Counter: a.store.Counter(), Ledger: a.store.Ledger()}
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	squareClient := square.NewClient(square.Config{
		BaseURL:     cfg.SquareAPIURL,
		AccessToken: cfg.SquareAccessToken,
		Version:     cfg.SquareVersion,
		Timeout:     cfg.SquareTimeout,
	})

	classifier := membership.DefaultClassifier()
	classifier.FullLabels = cfg.FullLabels
	classifier.InstallmentLabels = cfg.InstallmentLabels

	var guard *membership.DuplicateGuard
	switch cfg.HistorySource {
	case config.HistorySquare:
		guard = membership.NewDuplicateGuard(squareClient, classifier.InstallmentCents, logger, membership.SkipCurrentPayment())
	default:
		guard = membership.NewDuplicateGuard(counts, classifier.InstallmentCents, logger)
	}

	processor := membership.NewProcessor(classifier, guard, counts, counts, squareClient, logger)

	var verify httpapi.SignatureVerifier
	if cfg.SquareSignatureKey != "" {
		verify = func(r *http.Request, body []byte) bool {
			return square.VerifySignature(body, r.Header.Get(square.SignatureHeader), cfg.SquareNotificationURL, cfg.SquareSignatureKey)
		}
	} else {
		logger.Warn("SQUARE_SIGNATURE_KEY not set, webhook signatures are not verified")
	}

	api := httpapi.NewServer(processor, counts, verify, logger)
	wsHandler := websocket.NewHandler(a.hub, counts, logger)
	api.HandleFunc("GET /members/count/ws", wsHandler.ServeWS)
	a.httpSrv = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	return a, nil
}

func (a *App) connectPostgres(ctx context.Context) error {
	store, err := storage.New(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}

	publisher, err := messaging.NewRabbitPublisher(a.cfg.RabbitURL, a.cfg.MembersExchange)
	if err != nil {
		store.Close()
		return err
	}

	consumer, err := messaging.NewRabbitConsumer(a.cfg.RabbitURL, a.cfg.MembersExchange, a.cfg.LiveQueue, a.logger)
	if err != nil {
		store.Close()
		publisher.Close()
		return err
	}

	a.logger.Info("live count queue bound", "exchange", a.cfg.MembersExchange, "queue", consumer.Queue())

	a.store = store
	a.publisher = publisher
	a.consumer = consumer
	a.outbox = messaging.NewOutboxDispatcher(store.Pool(), publisher, outboxTable, a.cfg.OutboxInterval, a.cfg.OutboxBatch, a.cfg.OutboxMaxAttempts, a.logger)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go a.hub.Run(ctx)

	if a.outbox != nil {
		a.outbox.Start(ctx)
	}

	if a.consumer != nil {
		go func() {
			errCh <- a.consumer.Start(ctx, a.handleCountEvent)
		}()
	}

	go func() {
		a.logger.Info("members http server listening", "addr", a.cfg.HTTPAddr, "store", a.cfg.Store)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	if a.consumer != nil {
		a.consumer.Close()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

func (a *App) handleCountEvent(_ context.Context, msg amqp091.Delivery) {
	if msg.Type != "" && msg.Type != contracts.MemberCountUpdated {
		_ = msg.Ack(false)
		return
	}

	var evt contracts.MemberCountUpdatedEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		a.logger.Error("invalid member count event", "message_id", msg.MessageId, "err", err)
		_ = msg.Nack(false, false)
		return
	}

	a.hub.BroadcastCount(evt.Increment, evt.Total)
	_ = msg.Ack(false)
}

type pgCounts struct {
	*storage.Counter
	*storage.Ledger
}

func Run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}
