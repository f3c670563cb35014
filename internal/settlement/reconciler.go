package settlement

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mxshop/backend/internal/inventory"
	"github.com/mxshop/backend/internal/logging"
	"github.com/mxshop/backend/internal/models"
)

var ErrUnknownOrder = errors.New("unknown order")

// Notification is the verified payload of a provider callback. Callers must
// have checked the signature before handing it to the reconciler.
type Notification struct {
	OutTradeNo  string
	TradeNo     string
	TradeStatus string
}

func successStatus(s string) bool {
	return s == models.OrderStatusPaid || s == models.OrderStatusFinished
}

// Reconciler moves orders through their payment states. The provider
// redelivers callbacks until acknowledged, so Apply must stay safe under
// replays and concurrent duplicates.
type Reconciler struct {
	DB *gorm.DB
}

// Apply transitions the order named by the callback. Sold counters are
// bumped only when the guarded status update actually changes the order into
// a success state for the first time; the guard and the counter increments
// share one transaction, so duplicate deliveries race on the row lock and
// the loser sees zero affected rows.
func (r *Reconciler) Apply(ctx context.Context, n Notification) error {
	l := logging.FromContext(ctx).With("svc", "settlement.apply", "order_sn", n.OutTradeNo)

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		if err := tx.Where("order_sn = ?", n.OutTradeNo).First(&o).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownOrder
			}
			return err
		}

		if successStatus(n.TradeStatus) {
			res := tx.Model(&models.Order{}).
				Where("id = ? AND pay_status NOT IN ?", o.ID,
					[]string{models.OrderStatusPaid, models.OrderStatusFinished}).
				Update("pay_status", n.TradeStatus)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				// First confirmation of success for this order.
				var items []models.OrderItem
				if err := tx.Where("order_id = ?", o.ID).Find(&items).Error; err != nil {
					return err
				}
				ledger := &inventory.Ledger{DB: tx}
				for _, it := range items {
					if err := ledger.ConfirmSale(ctx, it.ProductID, it.Quantity); err != nil {
						return err
					}
				}
				l.Info("order_settled", "trade_no", n.TradeNo, "items", len(items))
			}
		}

		now := time.Now()
		return tx.Model(&models.Order{}).Where("id = ?", o.ID).
			Updates(map[string]any{
				"pay_status": n.TradeStatus,
				"trade_no":   n.TradeNo,
				"pay_time":   &now,
			}).Error
	})
}
