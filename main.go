package main

import (
	"log"

	"github.com/Anandhu-731/BookNest/config"
	"github.com/Anandhu-731/BookNest/controllers"
	"github.com/Anandhu-731/BookNest/gateway"
	"github.com/Anandhu-731/BookNest/payments"
	"github.com/Anandhu-731/BookNest/routes"
	"github.com/Anandhu-731/BookNest/utils"
)

func main() {
	// Initialize logger
	if err := utils.InitLogger(); err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}

	// Load environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.LogError("Error loading config: %v", err)
		log.Fatal("Error loading config:", err)
	}

	// Initialize database
	config.InitDB()

	// Wire the reconciliation engine
	gatewayClient := gateway.NewClient(gateway.Config{
		BaseURL:      cfg.GatewayBaseURL,
		SecretKey:    cfg.GatewaySecretKey,
		CategoryCode: cfg.GatewayCategoryCode,
		Timeout:      cfg.GatewayTimeout,
		CallbackURL:  cfg.CallbackBaseURL + "/v1/payment/callback",
		ReturnURL:    cfg.CallbackBaseURL + "/v1/payment/return",
	})
	ledger := payments.NewGormLedger(config.DB)
	alerts := utils.NewAlertMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.AlertFrom, cfg.AlertTo)
	engine := payments.NewEngine(gatewayClient, ledger, alerts, payments.EngineConfig{
		ClampExcess: cfg.ClampExcess,
	})
	locks := payments.NewBillLocks()

	// Safety net for lost callbacks
	poller := payments.NewPoller(engine, ledger, cfg.PollInterval, cfg.PollMinAge, cfg.PollBatchSize)
	poller.Start()
	defer poller.Stop()

	// Set up router
	paymentHandler := controllers.NewPaymentHandler(engine, locks)
	adminHandler := controllers.NewAdminPaymentHandler(config.DB, engine, locks)
	router := routes.SetupRouter(paymentHandler, adminHandler)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	utils.LogInfo("Server starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		utils.LogError("Error starting server: %v", err)
		log.Fatal("Error starting server:", err)
	}
}
