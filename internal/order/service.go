package order

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mxshop/backend/internal/models"
)

var (
	ErrEmptyCart  = errors.New("empty cart")
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
)

// Service converts carts into immutable orders. Creation never touches
// inventory: stock was already reserved when the items entered the cart.
type Service struct {
	DB *gorm.DB
}

type CreateRequest struct {
	Address      string `json:"address"`
	SignerName   string `json:"signer_name"`
	SignerMobile string `json:"signer_mobile"`
	PostScript   string `json:"post_script"`
}

type Detail struct {
	models.Order
	Items []models.OrderItem `json:"items"`
}

// GenerateSN builds the external-facing order number: timestamp + user id +
// two random digits. A unique index on order_sn backs it up at the storage
// layer.
func GenerateSN(userID uint) string {
	return fmt.Sprintf("%s%d%d", time.Now().Format("20060102150405"), userID, 10+rand.Intn(90))
}

// Create snapshots the user's cart into an order with line items and clears
// the cart, all in one transaction. The total is the sum of shop_price x
// quantity evaluated now; later price changes do not retouch the order.
func (s *Service) Create(ctx context.Context, userID uint, req CreateRequest) (*Detail, error) {
	if req.SignerMobile == "" {
		return nil, fmt.Errorf("%w: signer_mobile required", ErrValidation)
	}

	var detail Detail
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		ids := make([]uint, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		var products []models.Product
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return err
		}
		prices := make(map[uint]decimal.Decimal, len(products))
		for _, p := range products {
			prices[p.ID] = decimal.NewFromFloat(p.ShopPrice)
		}

		total := decimal.Zero
		for _, it := range items {
			price, ok := prices[it.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d", ErrNotFound, it.ProductID)
			}
			total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}

		o := models.Order{
			UserID:       userID,
			OrderSN:      GenerateSN(userID),
			PayStatus:    models.OrderStatusAwaitingPayment,
			PostScript:   req.PostScript,
			OrderMount:   total.InexactFloat64(),
			Address:      req.Address,
			SignerName:   req.SignerName,
			SignerMobile: req.SignerMobile,
		}
		if err := tx.Create(&o).Error; err != nil {
			return err
		}

		lines := make([]models.OrderItem, 0, len(items))
		for _, it := range items {
			lines = append(lines, models.OrderItem{
				OrderID:   o.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			})
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}

		detail = Detail{Order: o, Items: lines}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (s *Service) List(ctx context.Context, userID uint, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Service) Get(ctx context.Context, userID, orderID uint) (*Detail, error) {
	var o models.Order
	if err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, err
	}

	var items []models.OrderItem
	if err := s.DB.WithContext(ctx).Where("order_id = ?", o.ID).Find(&items).Error; err != nil {
		return nil, err
	}
	return &Detail{Order: o, Items: items}, nil
}

func (s *Service) Delete(ctx context.Context, userID, orderID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", orderID, userID).Delete(&models.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return tx.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error
	})
}
