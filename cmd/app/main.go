package main

import (
	"os"

	"creditslot/internal/logger"
)

// @title CreditSlot API
// @version 1.0
// @description Credit-based slot booking, cancellation and merchant payouts.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
