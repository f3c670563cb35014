package inventory

import (
	"context"
	"fmt"
	"strings"
	"sync"
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

func stockOf(t *testing.T, db *gorm.DB, id uint) (stock, sold int) {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.StockNum, p.SoldNum
}

func TestReserveReleaseAccounting(t *testing.T) {
	db := newTestDB(t)
	ledger := &Ledger{DB: db}
	ctx := context.Background()

	p := models.Product{Name: "apple", ShopPrice: 10, StockNum: 10}
	require.NoError(t, db.Create(&p).Error)

	require.NoError(t, ledger.Reserve(ctx, p.ID, 3))
	require.NoError(t, ledger.Reserve(ctx, p.ID, 2))
	require.NoError(t, ledger.Release(ctx, p.ID, 4))

	stock, _ := stockOf(t, db, p.ID)
	require.Equal(t, 10-3-2+4, stock)
}

func TestReserveInsufficientStock(t *testing.T) {
	db := newTestDB(t)
	ledger := &Ledger{DB: db}
	ctx := context.Background()

	p := models.Product{Name: "pear", ShopPrice: 5, StockNum: 1}
	require.NoError(t, db.Create(&p).Error)

	err := ledger.Reserve(ctx, p.ID, 2)
	require.ErrorIs(t, err, ErrInsufficientStock)

	stock, _ := stockOf(t, db, p.ID)
	require.Equal(t, 1, stock, "failed reservation must not mutate stock")
}

func TestReserveUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	ledger := &Ledger{DB: db}

	err := ledger.Reserve(context.Background(), 9999, 1)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	db := newTestDB(t)
	ledger := &Ledger{DB: db}

	require.Error(t, ledger.Reserve(context.Background(), 1, 0))
	require.Error(t, ledger.Reserve(context.Background(), 1, -3))
}

func TestConfirmSale(t *testing.T) {
	db := newTestDB(t)
	ledger := &Ledger{DB: db}
	ctx := context.Background()

	p := models.Product{Name: "plum", ShopPrice: 3, StockNum: 5}
	require.NoError(t, db.Create(&p).Error)

	require.NoError(t, ledger.ConfirmSale(ctx, p.ID, 2))
	require.NoError(t, ledger.ConfirmSale(ctx, p.ID, 1))

	stock, sold := stockOf(t, db, p.ID)
	require.Equal(t, 5, stock, "confirm sale must not touch stock")
	require.Equal(t, 3, sold)
}

func TestConcurrentReserve(t *testing.T) {
	db := newTestDB(t)
	ledger := &Ledger{DB: db}
	ctx := context.Background()

	const stock = 8
	const callers = stock + 5

	p := models.Product{Name: "melon", ShopPrice: 20, StockNum: stock}
	require.NoError(t, db.Create(&p).Error)

	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.Reserve(ctx, p.ID, 1)
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrInsufficientStock)
			insufficient++
		}
	}

	require.Equal(t, stock, ok)
	require.Equal(t, callers-stock, insufficient)

	final, _ := stockOf(t, db, p.ID)
	require.Equal(t, 0, final)
}
