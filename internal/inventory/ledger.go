package inventory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/mxshop/backend/internal/models"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
)

// Ledger applies atomic stock and sales-counter deltas. Every mutation is a
// single conditional UPDATE so concurrent requests for the same product
// cannot lose updates. Bind it to a transaction handle to make ledger calls
// part of an enclosing unit of work.
type Ledger struct {
	DB *gorm.DB
}

// Reserve decrements stock by qty. The stock_num >= qty guard in the WHERE
// clause is what makes the check-and-decrement atomic.
func (l *Ledger) Reserve(ctx context.Context, productID uint, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve: quantity must be > 0, got %d", qty)
	}

	res := l.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock_num >= ?", productID, qty).
		Update("stock_num", gorm.Expr("stock_num - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return l.missingOrOutOfStock(ctx, productID)
	}
	return nil
}

// Release returns qty units to stock, used when a cart line shrinks or is
// removed.
func (l *Ledger) Release(ctx context.Context, productID uint, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("release: quantity must be > 0, got %d", qty)
	}

	res := l.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_num", gorm.Expr("stock_num + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ConfirmSale increments the sold counter after a settled payment. Callers
// are responsible for invoking it at most once per order; the settlement
// reconciler gates it behind a first-confirmation check.
func (l *Ledger) ConfirmSale(ctx context.Context, productID uint, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("confirm sale: quantity must be > 0, got %d", qty)
	}

	res := l.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Update("sold_num", gorm.Expr("sold_num + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (l *Ledger) missingOrOutOfStock(ctx context.Context, productID uint) error {
	var count int64
	if err := l.DB.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrProductNotFound
	}
	return ErrInsufficientStock
}
