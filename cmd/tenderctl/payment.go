package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tender-workflow/internal/common/auth"
	"tender-workflow/internal/common/backend"
	"tender-workflow/internal/common/config"
	"tender-workflow/internal/common/logger"
	"tender-workflow/internal/payment"
	"tender-workflow/internal/tender/notify"
)

func paymentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Payment tools",
	}

	push := &cobra.Command{
		Use:   "push",
		Short: "Send a USSD push and poll for confirmation",
		RunE:  runPaymentPush,
	}
	push.Flags().String("amount", "", "Amount to request")
	push.Flags().String("phone", "", "Payer phone number")
	push.Flags().String("mno", "", "Mobile network operator")
	push.Flags().String("reason", "", "Payment reason")
	_ = push.MarkFlagRequired("amount")
	_ = push.MarkFlagRequired("phone")
	_ = push.MarkFlagRequired("mno")

	cmd.AddCommand(push)
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func runPaymentPush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	raw, _ := cmd.Flags().GetString("amount")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	phone, _ := cmd.Flags().GetString("phone")
	mno, _ := cmd.Flags().GetString("mno")
	reason, _ := cmd.Flags().GetString("reason")
	level, _ := cmd.Flags().GetString("log-level")
	log := logger.NewStructured(level, "console")

	var tokens auth.TokenSource
	if cfg.Auth.Enabled() {
		tokens = auth.NewKeycloakClient(cfg.Auth.Keycloak.URL, cfg.Auth.Keycloak.Realm,
			cfg.Auth.Keycloak.ClientID, cfg.Auth.Keycloak.ClientSecret)
	}
	api := backend.NewClient(cfg.Backend.BaseURL, config.GetDuration(cfg.Backend.Timeout), tokens, log)

	out := cmd.OutOrStdout()
	orch := payment.New(payment.Config{
		PollInterval: config.GetDuration(cfg.Payment.PollInterval),
		MaxAttempts:  cfg.Payment.MaxPollAttempts,
		PushTimeout:  config.GetDuration(cfg.Payment.PushTimeout),
	}, payment.Dependencies{
		Gateway: api,
		Notifier: notify.Func(func(n notify.Notification) {
			fmt.Fprintf(out, "[%s] %s\n", n.Level, n.Message)
		}),
	}, log)
	defer orch.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session, err := orch.Pay(ctx, backend.PushRequest{
		Amount:        amount,
		PhoneNumber:   phone,
		MNO:           mno,
		PaymentReason: reason,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "push accepted: request %s, waiting for confirmation\n", session.RequestID())

	res := session.Result()
	fmt.Fprintf(out, "%s after %d attempts\n", res.Outcome, res.Attempts)
	if res.Outcome != payment.OutcomeConfirmed {
		return fmt.Errorf("payment %s not confirmed", res.RequestID)
	}
	return nil
}
