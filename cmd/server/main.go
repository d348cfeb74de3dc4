package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storefront-be/internal/cart"
	"storefront-be/internal/catalog"
	"storefront-be/internal/config"
	"storefront-be/internal/db"
	"storefront-be/internal/filestore"
	"storefront-be/internal/gateway"
	"storefront-be/internal/httpapi"
	"storefront-be/internal/invoice"
	"storefront-be/internal/logger"
	"storefront-be/internal/order"
	"storefront-be/internal/payment"
	"storefront-be/internal/settlement"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	database := db.InitDB(cfg)
	defer database.Close()

	catalogRepo := catalog.NewRepository(database)
	cartSvc := cart.NewService(cart.NewRepository(database), catalogRepo)
	orderRepo := order.NewRepository(database)
	paymentRepo := payment.NewRepository(database)

	gw := gateway.NewRazorpayClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret)

	files, err := filestore.NewLocalStore(cfg.InvoiceDir)
	if err != nil {
		log.Fatal("failed to init invoice store", zap.Error(err))
	}
	inv := invoice.NewGenerator(files, cfg.FileURLSecret, cfg.FileURLTTL)

	policy := gateway.PolicyFromString(cfg.VerificationMode)
	settleSvc := settlement.NewService(cartSvc, orderRepo, paymentRepo, gw, inv, policy)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reconciler := settlement.NewReconciler(settleSvc, cfg.ReconcileInterval, cfg.ReconcileStaleAge)
	go reconciler.Run(ctx)

	handler := httpapi.NewHandler(settleSvc, cartSvc, orderRepo, inv, files)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: handler.Routes([]byte(cfg.JWTSecret)),
	}

	go func() {
		log.Info("server listening",
			zap.String("port", cfg.AppPort),
			zap.String("env", cfg.AppEnv),
			zap.String("verification", cfg.VerificationMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
