package cmd

import (
	"fmt"

	"github.com/psds-microservice/ticket-webhook/internal/config"
	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "ticket-webhook",
	Short:        "Dialogflow CX fulfillment webhooks and Twilio WhatsApp relay for support tickets",
	RunE:         runAPI,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(ticketCmd)
	rootCmd.AddCommand(reindexCmd)
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel, cfg.AppEnv), nil
}
