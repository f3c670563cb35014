package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mxshop/backend/internal/inventory"
	"github.com/mxshop/backend/internal/models"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
)

// Service owns the per-user cart lines. Every cart mutation reserves or
// releases stock through the inventory ledger inside the same transaction,
// so a failed reservation never leaves a cart line behind.
type Service struct {
	DB *gorm.DB
}

type Line struct {
	models.CartItem
	Product models.Product `json:"product"`
}

func (s *Service) Add(ctx context.Context, userID, productID uint, qty int) (*models.CartItem, error) {
	if productID == 0 {
		return nil, fmt.Errorf("%w: product_id required", ErrValidation)
	}
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	var item models.CartItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := &inventory.Ledger{DB: tx}
		if err := ledger.Reserve(ctx, productID, qty); err != nil {
			return err
		}

		res := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND product_id = ?", userID, productID).
			Update("quantity", gorm.Expr("quantity + ?", qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
		}

		item = models.CartItem{UserID: userID, ProductID: productID, Quantity: qty}
		return tx.Create(&item).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, productID uint, newQty int) (*models.CartItem, error) {
	if newQty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	var item models.CartItem
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND product_id = ?", userID, productID).
			First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart line: %w", ErrNotFound)
			}
			return err
		}

		ledger := &inventory.Ledger{DB: tx}
		delta := newQty - item.Quantity
		switch {
		case delta > 0:
			if err := ledger.Reserve(ctx, productID, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := ledger.Release(ctx, productID, -delta); err != nil {
				return err
			}
		default:
			return nil
		}

		item.Quantity = newQty
		return tx.Model(&models.CartItem{}).Where("id = ?", item.ID).
			Update("quantity", newQty).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) Remove(ctx context.Context, userID, productID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.CartItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND product_id = ?", userID, productID).
			First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart line: %w", ErrNotFound)
			}
			return err
		}

		ledger := &inventory.Ledger{DB: tx}
		if err := ledger.Release(ctx, productID, item.Quantity); err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
}

// List returns the user's cart lines in insertion order, each with a product
// snapshot for display. Reading a snapshot has no inventory effect.
func (s *Service) List(ctx context.Context, userID uint) ([]Line, error) {
	var items []models.CartItem
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []Line{}, nil
	}

	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	var products []models.Product
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{CartItem: it, Product: byID[it.ProductID]})
	}
	return lines, nil
}
