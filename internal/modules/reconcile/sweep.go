package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/storage"
)

// TransactionStatusGateway queries the final status of a payment by its
// transaction ID.
type TransactionStatusGateway interface {
	TransactionStatus(ctx context.Context, paymentID string) aci.CallResult
}

// SweepJob reconciles orders left pending by asynchronous payment methods.
// Idempotent and re-runnable: a resolved order drops out of the work set
// because the pending flag is cleared in the same transaction that
// resolves it.
type SweepJob struct {
	repo    *orders.Repo
	gw      TransactionStatusGateway
	archive storage.Storage // nil disables audit archiving
	logger  *slog.Logger
}

func NewSweepJob(repo *orders.Repo, gw TransactionStatusGateway, archive storage.Storage) *SweepJob {
	return &SweepJob{repo: repo, gw: gw, archive: archive, logger: slog.Default()}
}

func (j *SweepJob) SetLogger(l *slog.Logger) { j.logger = l }

// Run processes every pending order sequentially. Per-order failures are
// logged and do not abort the sweep; a non-nil error reports that at
// least one order failed.
func (j *SweepJob) Run(ctx context.Context) error {
	pending, err := j.repo.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		j.logger.Info("no orders found in pending status")
		return nil
	}

	failed := 0
	for _, o := range pending {
		j.logger.Info("processing pending order", "order_no", deref(o.OrderNo))
		if err := j.processOrder(ctx, o); err != nil {
			j.logger.Error("processing failed", "order_no", deref(o.OrderNo), "err", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("sweep: %d of %d pending orders failed", failed, len(pending))
	}
	return nil
}

func (j *SweepJob) processOrder(ctx context.Context, o orders.Order) error {
	_, pt, err := j.repo.GatewayPayment(ctx, o.ID)
	if err != nil || pt.TransactionID == "" {
		// skip, keep pending; the order needs operator attention
		j.logger.Error("payment ID missing for pending order", "order_no", deref(o.OrderNo))
		return nil
	}

	call := j.gw.TransactionStatus(ctx, pt.TransactionID)
	if !call.OK {
		return fmt.Errorf("transaction status query failed: %s", call.ErrorMessage)
	}
	resp := call.Object

	if aci.IsPending(resp) {
		// still no final outcome; leave for the next sweep
		j.logger.Info("payment still pending", "order_no", deref(o.OrderNo))
		return nil
	}

	rejected := aci.IsRejected(resp)
	err = j.repo.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := orders.LockOrderTx(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if !locked.IsPendingOrder {
			// resolved by a concurrent run; re-entry is a no-op
			return nil
		}
		o = locked

		summary := aci.Summarize(resp)
		data, err := summaryJSON(summary)
		if err != nil {
			return err
		}
		if err := orders.SaveResponseTx(ctx, tx, &o, &pt, aci.HistoryKey(summary), data); err != nil {
			return err
		}

		now := time.Now()
		if rejected {
			j.logger.Info("payment rejected, cancelling order", "order_no", deref(o.OrderNo))
			if err := orders.CancelOrderTx(ctx, tx, &o); err != nil {
				return err
			}
		} else {
			j.logger.Info("payment confirmed, order ready for export", "order_no", deref(o.OrderNo))
			if err := tx.WithContext(ctx).Model(&orders.Order{}).
				Where("id = ?", o.ID).
				Updates(map[string]any{"export_status": orders.ExportReady, "updated_at": now}).Error; err != nil {
				return err
			}
		}

		return tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ?", o.ID).
			Updates(map[string]any{"is_pending_order": false, "updated_at": now}).Error
	})
	if err != nil {
		return err
	}

	j.archiveHistory(ctx, o)
	return nil
}

// archiveHistory writes the order's payment response history to the audit
// store. Best effort; failures only log.
func (j *SweepJob) archiveHistory(ctx context.Context, o orders.Order) {
	if j.archive == nil || len(o.PaymentResponseHistory) == 0 {
		return
	}
	name := fmt.Sprintf("payment-history-%s.json", deref(o.OrderNo))
	_, err := j.archive.Put(ctx, bytes.NewReader(o.PaymentResponseHistory), storage.PutInput{
		Filename:    name,
		ContentType: "application/json",
		Size:        int64(len(o.PaymentResponseHistory)),
	})
	if err != nil {
		j.logger.Error("archiving payment history failed", "order_no", deref(o.OrderNo), "err", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
