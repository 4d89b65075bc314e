// Пакет app собирает сервис из частей: каталог, стратегия хранения,
// producer событий, метрики, HTTP-серверы и их аккуратная остановка.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/catalog"
	"github.com/vladislavdragonenkov/comanda/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/comanda/internal/health"
	"github.com/vladislavdragonenkov/comanda/internal/httpapi"
	"github.com/vladislavdragonenkov/comanda/internal/metrics"
	"github.com/vladislavdragonenkov/comanda/internal/service/orders"
	"github.com/vladislavdragonenkov/comanda/internal/storage/memory"
	"github.com/vladislavdragonenkov/comanda/internal/storage/postgres"
	"github.com/vladislavdragonenkov/comanda/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run запускает сервис и блокируется до отмены ctx или фатальной ошибки
// одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	products, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logger.WithField("products", len(products)).Info("catalog loaded")

	strategy, closeStrategy, err := openStrategy(ctx, cfg, products, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStrategy(); err != nil {
			logger.WithError(err).Warn("storage close failed")
		}
	}()

	producer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(producer, logger)

	var publisher orders.EventPublisher
	if producer != nil {
		publisher = producer
	}
	service := orders.NewService(
		strategy,
		metrics.NewOrderMetrics(),
		publisher,
		logger.WithField("layer", "service"),
	)

	healthHandler := healthcheck.NewHandler(version.String())
	healthHandler.Register("storage", strategy.Ping)

	opsSrv := startOpsServer(ctx, cfg.OpsAddr, logger, healthHandler)
	defer shutdownHTTP(opsSrv, logger)

	apiSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.NewHandler(service, logger.WithField("layer", "http"))),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// openStrategy выбирает бэкенд: postgres при заданном DSN (с прогоном
// миграций и загрузкой каталога), иначе память с опциональным снапшотом.
func openStrategy(ctx context.Context, cfg Config, products []domain.Product, logger *log.Entry) (domain.Strategy, func() error, error) {
	if cfg.PostgresDSN != "" {
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := store.MigrateUp(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		strategy, err := postgres.NewStrategy(store)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		if err := strategy.SeedProducts(ctx, products); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("seed catalog: %w", err)
		}
		logger.Info("durable backend selected (postgres)")
		return strategy, store.Close, nil
	}

	if cfg.SnapshotPath != "" {
		store, err := memory.NewStoreWithSnapshot(products, cfg.SnapshotPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load snapshot: %w", err)
		}
		logger.WithField("snapshot", cfg.SnapshotPath).Info("ephemeral backend selected (snapshot file)")
		return store, store.Close, nil
	}

	store := memory.NewStore(products)
	logger.Info("ephemeral backend selected (memory only)")
	return store, store.Close, nil
}

// startOpsServer поднимает служебный HTTP-сервер: /metrics для Prometheus
// и health-эндпоинты.
func startOpsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
