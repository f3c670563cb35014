package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/mxshop/backend/internal/alipay"
	"github.com/mxshop/backend/internal/logging"
	"github.com/mxshop/backend/internal/mykafka"
	"github.com/mxshop/backend/internal/settlement"
)

// PaymentHandler terminates the two provider callback channels. The
// asynchronous notify is the authoritative settlement path; the synchronous
// return only feeds the same idempotent reconciler and redirects the
// browser.
type PaymentHandler struct {
	Alipay      *alipay.Client
	Reconciler  *settlement.Reconciler
	Producer    *mykafka.Producer
	FrontendURL string
}

func flatten(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Notify handles the provider's server-to-server POST. Anything but the
// literal body "success" makes the provider retry, so internal failures are
// answered with a generic non-acknowledgment and no detail.
func (h *PaymentHandler) Notify(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.notify")

	if h.Alipay == nil {
		return c.String(http.StatusServiceUnavailable, "failure")
	}

	form, err := c.FormParams()
	if err != nil {
		return c.String(http.StatusBadRequest, "failure")
	}
	params := flatten(form)

	if !h.Alipay.Verify(params) {
		l.Warn("callback_signature_invalid", "out_trade_no", params["out_trade_no"], "remote_ip", c.RealIP())
		return c.String(http.StatusForbidden, "failure")
	}

	n := settlement.Notification{
		OutTradeNo:  params["out_trade_no"],
		TradeNo:     params["trade_no"],
		TradeStatus: params["trade_status"],
	}
	if err := h.Reconciler.Apply(ctx, n); err != nil {
		if errors.Is(err, settlement.ErrUnknownOrder) {
			// Verified but referencing nothing we sold: log and
			// acknowledge, retries cannot make the order exist.
			l.Warn("callback_unknown_order", "out_trade_no", n.OutTradeNo)
			return c.String(http.StatusOK, "success")
		}
		l.Error("settlement_failed", "out_trade_no", n.OutTradeNo, "error", err)
		return c.String(http.StatusInternalServerError, "failure")
	}

	if h.Producer != nil {
		event := map[string]any{
			"type":         "order_settled",
			"orderSN":      n.OutTradeNo,
			"trade_status": n.TradeStatus,
		}
		if err := h.Producer.PublishEvent(ctx, "order_events", n.OutTradeNo, event); err != nil {
			l.Error("kafka publish", "error", err)
		}
	}

	return c.String(http.StatusOK, "success")
}

// Return handles the browser redirect back from the provider. It applies the
// same settlement (idempotent, so harmless next to the notify) and sends the
// user to the landing page.
func (h *PaymentHandler) Return(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.return")

	if h.Alipay == nil {
		return c.Redirect(http.StatusFound, h.FrontendURL)
	}

	params := flatten(c.QueryParams())
	if !h.Alipay.Verify(params) {
		l.Warn("callback_signature_invalid", "out_trade_no", params["out_trade_no"], "remote_ip", c.RealIP())
		return c.Redirect(http.StatusFound, h.FrontendURL)
	}

	n := settlement.Notification{
		OutTradeNo:  params["out_trade_no"],
		TradeNo:     params["trade_no"],
		TradeStatus: params["trade_status"],
	}
	if err := h.Reconciler.Apply(ctx, n); err != nil && !errors.Is(err, settlement.ErrUnknownOrder) {
		l.Error("settlement_failed", "out_trade_no", n.OutTradeNo, "error", err)
		return c.Redirect(http.StatusFound, h.FrontendURL)
	}

	c.SetCookie(&http.Cookie{Name: "nexPath", Value: "pay", Path: "/", MaxAge: 2})
	return c.Redirect(http.StatusFound, h.FrontendURL)
}
