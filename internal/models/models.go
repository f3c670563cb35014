package models

import (
	"time"
)

// Order payment states. The set mirrors the trade_status values reported by
// the payment provider so a verified callback can be stored as-is.
const (
	OrderStatusAwaitingPayment = "WAIT_BUYER_PAY"
	OrderStatusPaid            = "TRADE_SUCCESS"
	OrderStatusFinished        = "TRADE_FINISHED"
	OrderStatusClosed          = "TRADE_CLOSED"
)

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"                json:"id"`
	Name        string  `gorm:"not null"                                json:"name"`
	Description string  `json:"description"`
	MarketPrice float64 `json:"market_price"`
	ShopPrice   float64 `gorm:"not null"                                json:"shop_price"`
	StockNum    int     `gorm:"not null;default:0;check:stock_num >= 0" json:"stock_num"`
	SoldNum     int     `gorm:"not null;default:0"                      json:"sold_num"`
	FavNum      int     `gorm:"not null;default:0"                      json:"fav_num"`
	ClickNum    int     `gorm:"not null;default:0"                      json:"click_num"`
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"unique;not null"          json:"username"`
	Mobile       string    `gorm:"unique;not null"          json:"mobile"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null"                 json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"      json:"id"`
	Token     string    `gorm:"unique;not null" json:"token"`
	UserID    uint      `gorm:"index;not null"  json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"        json:"expires_at"`
	Revoked   bool      `gorm:"default:false"   json:"revoked"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey"                                 json:"id"`
	UserID    uint `gorm:"uniqueIndex:idx_cart_user_product;not null" json:"user_id"`
	ProductID uint `gorm:"uniqueIndex:idx_cart_user_product;not null" json:"product_id"`
	Quantity  int  `gorm:"not null;check:quantity > 0"                json:"quantity"`
}

type Order struct {
	ID           uint       `gorm:"primaryKey"          json:"id"`
	UserID       uint       `gorm:"index;not null"      json:"user_id"`
	OrderSN      string     `gorm:"uniqueIndex;size:30" json:"order_sn"`
	TradeNo      string     `gorm:"size:100"            json:"trade_no"`
	PayStatus    string     `gorm:"not null;size:30"    json:"pay_status"`
	PostScript   string     `gorm:"size:200"            json:"post_script"`
	OrderMount   float64    `gorm:"not null"            json:"order_mount"`
	PayTime      *time.Time `json:"pay_time"`
	Address      string     `gorm:"size:100"            json:"address"`
	SignerName   string     `gorm:"size:20"             json:"signer_name"`
	SignerMobile string     `gorm:"size:11"             json:"signer_mobile"`
	CreatedAt    time.Time  `json:"created_at"`
}

type OrderItem struct {
	ID        uint `gorm:"primaryKey"                  json:"id"`
	OrderID   uint `gorm:"index;not null"              json:"order_id"`
	ProductID uint `gorm:"not null"                    json:"product_id"`
	Quantity  int  `gorm:"not null;check:quantity > 0" json:"quantity"`
}

type UserFav struct {
	ID        uint      `gorm:"primaryKey"                                json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_fav_user_product;not null" json:"user_id"`
	ProductID uint      `gorm:"uniqueIndex:idx_fav_user_product;not null" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message types match the storefront's dropdown: comment, complaint,
// inquiry, after-sale, demand.
const (
	MessageTypeComment   = 1
	MessageTypeComplaint = 2
	MessageTypeInquiry   = 3
	MessageTypeAfterSale = 4
	MessageTypeDemand    = 5
)

type LeavingMessage struct {
	ID          uint      `gorm:"primaryKey"              json:"id"`
	UserID      uint      `gorm:"index;not null"          json:"user_id"`
	MessageType int       `gorm:"not null;default:1"      json:"message_type"`
	Subject     string    `gorm:"size:100"                json:"subject"`
	Body        string    `gorm:"column:message;size:500" json:"message"`
	File        string    `gorm:"size:200"                json:"file"`
	CreatedAt   time.Time `json:"created_at"`
}

type Address struct {
	ID           uint   `gorm:"primaryKey"     json:"id"`
	UserID       uint   `gorm:"index;not null" json:"user_id"`
	Province     string `gorm:"size:100"       json:"province"`
	City         string `gorm:"size:100"       json:"city"`
	District     string `gorm:"size:100"       json:"district"`
	Detail       string `gorm:"size:100"       json:"detail"`
	SignerName   string `gorm:"size:100"       json:"signer_name"`
	SignerMobile string `gorm:"size:11"        json:"signer_mobile"`
}

// All is the migration set passed to AutoMigrate.
func All() []any {
	return []any{
		&Product{}, &User{}, &RefreshToken{}, &CartItem{},
		&Order{}, &OrderItem{}, &UserFav{}, &Address{}, &LeavingMessage{},
	}
}
