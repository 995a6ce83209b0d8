package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/psds-microservice/ticket-webhook/internal/application"
	"github.com/psds-microservice/ticket-webhook/internal/model"
	"github.com/psds-microservice/ticket-webhook/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Create or look up tickets directly in the configured store",
}

var ticketCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Insert one ticket through the same path as the webhooks",
	Args:  cobra.NoArgs,
	RunE:  runTicketCreate,
}

var ticketGetCmd = &cobra.Command{
	Use:   "get <ticket-id>",
	Short: "Print a ticket's status, creation time and issue",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketGet,
}

var (
	ticketChannel string
	ticketInput   service.CreateTicketInput
)

func init() {
	ticketCmd.PersistentFlags().StringVar(&ticketChannel, "channel", string(model.ChannelVoice), "ticket channel: voice or whatsapp")
	ticketCreateCmd.Flags().StringVar(&ticketInput.Name, "name", "", "customer name")
	ticketCreateCmd.Flags().StringVar(&ticketInput.Email, "email", "", "customer email address")
	ticketCreateCmd.Flags().StringVar(&ticketInput.Issue, "issue", "", "issue description")
	ticketCreateCmd.Flags().StringVar(&ticketInput.Phone, "phone", "", "customer phone number (whatsapp only)")
	ticketCmd.AddCommand(ticketCreateCmd, ticketGetCmd)
}

func ticketService(cmd *cobra.Command) (*service.TicketService, model.Channel, func(), error) {
	ch, err := model.ParseChannel(ticketChannel)
	if err != nil {
		return nil, "", nil, err
	}
	cfg, log, err := setup()
	if err != nil {
		return nil, "", nil, err
	}
	st, err := application.OpenStore(cmd.Context(), cfg, log)
	if err != nil {
		return nil, "", nil, err
	}
	closeFn := func() {
		if err := st.Close(); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}
	return service.NewTicketService(st, nil, nil, log), ch, closeFn, nil
}

func runTicketCreate(cmd *cobra.Command, args []string) error {
	svc, ch, closeFn, err := ticketService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	t, err := svc.Create(cmd.Context(), ch, ticketInput)
	if err != nil {
		return err
	}
	return printJSON(cmd, t)
}

func runTicketGet(cmd *cobra.Command, args []string) error {
	svc, ch, closeFn, err := ticketService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	v, err := svc.Status(cmd.Context(), ch, args[0])
	if err != nil {
		return fmt.Errorf("ticket %s: %w", args[0], err)
	}
	return printJSON(cmd, v)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
