package order

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mxshop/backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedCart(t *testing.T, db *gorm.DB, userID uint, entries ...models.CartItem) {
	t.Helper()
	for i := range entries {
		entries[i].UserID = userID
		require.NoError(t, db.Create(&entries[i]).Error)
	}
}

func TestCreateSnapshotsCartIntoOrder(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	a := models.Product{Name: "widget", ShopPrice: 10, StockNum: 5}
	b := models.Product{Name: "gadget", ShopPrice: 5, StockNum: 5}
	require.NoError(t, db.Create(&a).Error)
	require.NoError(t, db.Create(&b).Error)

	seedCart(t, db, 7,
		models.CartItem{ProductID: a.ID, Quantity: 2},
		models.CartItem{ProductID: b.ID, Quantity: 1},
	)

	detail, err := svc.Create(ctx, 7, CreateRequest{
		Address:      "10 Main St",
		SignerName:   "bob",
		SignerMobile: "13800138000",
	})
	require.NoError(t, err)

	require.Equal(t, models.OrderStatusAwaitingPayment, detail.PayStatus)
	require.Equal(t, 25.0, detail.OrderMount)
	require.Len(t, detail.Items, 2)
	require.Equal(t, a.ID, detail.Items[0].ProductID)
	require.Equal(t, 2, detail.Items[0].Quantity)
	require.Equal(t, b.ID, detail.Items[1].ProductID)

	// The cart is gone once the order exists.
	var cartCount int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("user_id = ?", 7).Count(&cartCount).Error)
	require.EqualValues(t, 0, cartCount)

	// Creation reads the catalog but never touches inventory.
	var p models.Product
	require.NoError(t, db.First(&p, a.ID).Error)
	require.Equal(t, 5, p.StockNum)
	require.Equal(t, 0, p.SoldNum)
}

func TestCreateEmptyCart(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}

	_, err := svc.Create(context.Background(), 7, CreateRequest{SignerMobile: "13800138000"})
	require.ErrorIs(t, err, ErrEmptyCart)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestCreateMissingProductRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}

	// A cart line pointing at a product that no longer exists.
	seedCart(t, db, 7, models.CartItem{ProductID: 999, Quantity: 1})

	_, err := svc.Create(context.Background(), 7, CreateRequest{SignerMobile: "13800138000"})
	require.ErrorIs(t, err, ErrNotFound)

	var orders, lines, cart int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&lines).Error)
	require.NoError(t, db.Model(&models.CartItem{}).Count(&cart).Error)
	require.EqualValues(t, 0, orders)
	require.EqualValues(t, 0, lines)
	require.EqualValues(t, 1, cart, "failed conversion must keep the cart intact")
}

func TestCreateRequiresSignerMobile(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}

	_, err := svc.Create(context.Background(), 7, CreateRequest{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestGenerateSN(t *testing.T) {
	sn := GenerateSN(42)
	require.Regexp(t, regexp.MustCompile(`^\d{14}42\d{2}$`), sn)
}

func TestGetScopedToUser(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	p := models.Product{Name: "thing", ShopPrice: 1, StockNum: 5}
	require.NoError(t, db.Create(&p).Error)
	seedCart(t, db, 7, models.CartItem{ProductID: p.ID, Quantity: 1})

	detail, err := svc.Create(ctx, 7, CreateRequest{SignerMobile: "13800138000"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, 7, detail.ID)
	require.NoError(t, err)
	require.Equal(t, detail.OrderSN, got.OrderSN)
	require.Len(t, got.Items, 1)

	_, err = svc.Get(ctx, 8, detail.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesOrderAndItems(t *testing.T) {
	db := newTestDB(t)
	svc := &Service{DB: db}
	ctx := context.Background()

	p := models.Product{Name: "thing", ShopPrice: 1, StockNum: 5}
	require.NoError(t, db.Create(&p).Error)
	seedCart(t, db, 7, models.CartItem{ProductID: p.ID, Quantity: 1})

	detail, err := svc.Create(ctx, 7, CreateRequest{SignerMobile: "13800138000"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, 8, detail.ID), ErrNotFound)
	require.NoError(t, svc.Delete(ctx, 7, detail.ID))

	var items int64
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&items).Error)
	require.EqualValues(t, 0, items)
}
