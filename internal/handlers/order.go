package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/mxshop/backend/internal/alipay"
	"github.com/mxshop/backend/internal/logging"
	authmw "github.com/mxshop/backend/internal/middleware/auth"
	"github.com/mxshop/backend/internal/mykafka"
	"github.com/mxshop/backend/internal/order"
	"github.com/mxshop/backend/internal/util"
)

type OrderHandler struct {
	Svc      *order.Service
	Alipay   *alipay.Client
	Producer *mykafka.Producer
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["userID"]), event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish", "error", err)
	}
}

// payURL regenerates the signed gateway URL for an order so the client can
// retry payment from the order page.
func (h *OrderHandler) payURL(c echo.Context, sn string, amount float64) string {
	if h.Alipay == nil {
		return ""
	}
	u, err := h.Alipay.PayURL(sn, sn, decimal.NewFromFloat(amount))
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("build pay url", "order_sn", sn, "error", err)
		return ""
	}
	return u
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var req order.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	detail, err := h.Svc.Create(c.Request().Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrEmptyCart):
			return echo.NewHTTPError(http.StatusBadRequest, "no items in cart")
		case errors.Is(err, order.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		default:
			logging.FromContext(c.Request().Context()).Error("create order", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": detail.ID,
		"orderSN": detail.OrderSN,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"order":      detail,
		"alipay_url": h.payURL(c, detail.OrderSN, detail.OrderMount),
	})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	orders, err := h.Svc.List(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	detail, err := h.Svc.Get(c.Request().Context(), userID, uint(id))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"order":      detail,
		"alipay_url": h.payURL(c, detail.OrderSN, detail.OrderMount),
	})
}

func (h *OrderHandler) DeleteOrder(c echo.Context) error {
	userID, err := authmw.UserID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.Svc.Delete(c.Request().Context(), userID, uint(id)); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	h.publish(c, map[string]any{
		"type":    "order_deleted",
		"userID":  userID,
		"orderID": id,
	})
	return c.NoContent(http.StatusNoContent)
}
