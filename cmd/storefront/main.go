// Package main запускает HTTP-сервер витрины.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront/internal/admin"
	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/cart"
	"github.com/mmeshcher/storefront/internal/checkout"
	"github.com/mmeshcher/storefront/internal/config"
	"github.com/mmeshcher/storefront/internal/handler"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/notify"
	"github.com/mmeshcher/storefront/internal/orders"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := openStorage(ctx, cfg)
	if err != nil {
		sugar.Fatalw("session storage initialization error", "kind", cfg.StorageKind(), "error", err.Error())
	}
	defer storage.Close()

	var store *session.Store
	client := backend.NewClient(cfg.BackendAddress,
		backend.TokenFunc(func() string { return store.Token() }),
		backend.WithTimeout(cfg.BackendTimeout),
	)
	store = session.New(storage, client, logger)

	notes := notify.NewQueue()
	defer notes.Close()

	hosted := payment.NewHosted(cfg.WidgetScriptURL, cfg.WidgetSessionTTL, logger)
	defer hosted.Close()

	cartFlow := cart.NewWorkflow(client, notes, logger)
	selection := checkout.NewSelection()

	store.OnChange(func(user *model.User) {
		if user == nil {
			cartFlow.Reset()
			selection.Reset()
			return
		}
		cartCtx, cancel := context.WithTimeout(ctx, cfg.BackendTimeout)
		defer cancel()
		if _, err := cartFlow.EnsureCart(cartCtx, user.ID); err != nil {
			logger.Warn("failed to initialize cart", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	})

	h := handler.NewHandler(handler.Deps{
		Sessions:      store,
		Backend:       client,
		Cart:          cartFlow,
		Selection:     selection,
		Orders:        orders.NewHistory(client, notes, logger),
		AdminOrders:   admin.NewOrders(client, notes, logger),
		AdminProducts: admin.NewProducts(client, notes, logger),
		Payments:      hosted,
		Notes:         notes,
		Metrics:       middleware.NewMetrics(),
		Checkout: checkout.Config{
			AppName: cfg.AppName,
			KeyID:   cfg.PaymentKeyID,
		},
	}, logger, middleware.NewAuthMiddleware(store))

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Восстановление сессии; до его окончания защищённые страницы отвечают 503
	g.Go(func() error {
		store.Restore(ctx)
		if user := store.User(); user != nil {
			sugar.Infow("session restored", "user_id", user.ID, "role", user.Role)
		}
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting storefront server",
			"addr", cfg.RunAddress,
			"backend", cfg.BackendAddress,
			"storage", cfg.StorageKind(),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// openStorage выбирает хранилище сессии: PostgreSQL, Redis или файл.
func openStorage(ctx context.Context, cfg *config.Config) (repository.Storage, error) {
	switch cfg.StorageKind() {
	case "postgres":
		return repository.NewPostgresStorage(cfg.DatabaseURI)
	case "redis":
		return repository.NewRedisStorage(ctx, cfg.RedisAddress, "")
	}
	return repository.NewFileStorage(cfg.StoragePath)
}
