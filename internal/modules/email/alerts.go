// Package email sends merchant notification emails for payment events that
// need manual attention.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/mailer"
)

// Alerts notifies the merchant back office. All methods are best-effort;
// callers log failures but do not abort payment processing on them.
type Alerts struct {
	mailer   mailer.Service
	from     string
	fromName string
	to       []string
	logger   *slog.Logger
}

func NewAlerts(m mailer.Service, from, fromName string, to []string, logger *slog.Logger) *Alerts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerts{mailer: m, from: from, fromName: fromName, to: to, logger: logger}
}

// ReversalFailed reports that a compensating refund or reversal could not be
// completed after a failed order, leaving a charge that must be resolved by
// hand in the gateway back office.
func (a *Alerts) ReversalFailed(ctx context.Context, orderNo string) error {
	if a.mailer == nil || len(a.to) == 0 {
		a.logger.Warn("reversal-failed alert skipped, no recipients configured", "order_no", orderNo)
		return nil
	}

	text := fmt.Sprintf(
		"The payment for order %s was charged but the order could not be completed,\n"+
			"and the automatic reversal of the charge failed.\n\n"+
			"Please reverse or refund the payment manually in the ACI back office.\n",
		orderNo)

	html := fmt.Sprintf(
		"<p>The payment for order <strong>%s</strong> was charged but the order could not be completed, "+
			"and the automatic reversal of the charge failed.</p>"+
			"<p>Please reverse or refund the payment manually in the ACI back office.</p>",
		orderNo)

	err := a.mailer.Send(ctx, mailer.Email{
		FromName: a.fromName,
		From:     a.from,
		To:       a.to,
		Subject:  fmt.Sprintf("Action required: payment reversal failed for order %s", orderNo),
		TextBody: text,
		HTMLBody: html,
	})
	if err != nil {
		a.logger.Error("reversal-failed alert could not be sent", "order_no", orderNo, "error", err)
		return err
	}
	a.logger.Info("reversal-failed alert sent", "order_no", orderNo)
	return nil
}
