package main

import (
	"log"
	"log/slog"
	"os"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/config"
	apphttp "github.com/ACI-plugin/aci-commerce-gateway/internal/http"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/handlers"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/mailer"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/checkout"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/email"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/reconcile"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/transactions"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/wallet"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	client := aci.NewClient(cfg.ACI.Settings())
	client.SetLogger(logger)

	repo := orders.NewRepo(db)
	repo.SetLogger(logger)

	walletSvc := wallet.NewService(db, client)
	walletSvc.SetLogger(logger)

	checkoutSvc := checkout.NewService(repo, client, walletSvc)
	checkoutSvc.SetLogger(logger)

	txnSvc := transactions.NewService(repo, client)
	txnSvc.SetLogger(logger)

	var alerts reconcile.Alerter
	if len(cfg.NotificationEmails) > 0 {
		alerts = email.NewAlerts(
			mailer.NewSMTPMailer(cfg.SMTP, logger),
			cfg.AlertFrom, cfg.AlertFromName, cfg.NotificationEmails, logger,
		)
	}

	postPayment := reconcile.NewPostPaymentService(
		repo, client, txnSvc, walletSvc, alerts, cfg.ACI.CaptureImmediately,
	)
	postPayment.SetLogger(logger)

	states := checkout.NewStateCodec([]byte(cfg.CookieSecret), "aci_checkout", cfg.SecureCookie)

	r := apphttp.NewRouter(logger, apphttp.Handlers{
		Checkout:      handlers.NewCheckoutHandler(checkoutSvc, states, logger),
		PaymentReturn: handlers.NewPaymentReturnHandler(postPayment, states, logger),
		Transactions:  handlers.NewTransactionHandler(txnSvc, logger),
		Wallet:        handlers.NewWalletHandler(walletSvc, logger),
		Orders:        handlers.NewOrderHandler(repo, logger),
	})

	logger.Info("listening", "addr", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
