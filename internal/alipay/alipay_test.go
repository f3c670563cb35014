package alipay

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, sandbox bool) *Client {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return New(Config{
		AppID:      "2021000117625426",
		NotifyURL:  "http://shop.example.com/alipay/notify",
		ReturnURL:  "http://shop.example.com/alipay/return",
		PrivateKey: key,
		PublicKey:  &key.PublicKey,
		Sandbox:    sandbox,
	})
}

func parseQuery(t *testing.T, q string) map[string]string {
	t.Helper()
	values, err := url.ParseQuery(q)
	require.NoError(t, err)
	flat := make(map[string]string, len(values))
	for k := range values {
		flat[k] = values.Get(k)
	}
	return flat
}

func TestDirectPayQueryShape(t *testing.T) {
	c := newTestClient(t, true)

	q, err := c.DirectPay("order 2024", "2024010112000071", decimal.NewFromFloat(25))
	require.NoError(t, err)

	params := parseQuery(t, q)
	require.Equal(t, "2021000117625426", params["app_id"])
	require.Equal(t, "alipay.trade.page.pay", params["method"])
	require.Equal(t, "RSA2", params["sign_type"])
	require.Equal(t, "utf-8", params["charset"])
	require.Equal(t, "1.0", params["version"])
	require.Equal(t, "http://shop.example.com/alipay/notify", params["notify_url"])
	require.NotEmpty(t, params["sign"])
	require.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`, params["timestamp"])

	require.Contains(t, params["biz_content"], `"total_amount":"25.00"`)
	require.Contains(t, params["biz_content"], `"out_trade_no":"2024010112000071"`)
	require.Contains(t, params["biz_content"], `"product_code":"FAST_INSTANT_TRADE_PAY"`)

	// Keys before the trailing signature are in lexicographic order.
	raw := strings.Split(q, "&")
	keys := make([]string, 0, len(raw))
	for _, kv := range raw {
		keys = append(keys, strings.SplitN(kv, "=", 2)[0])
	}
	require.Equal(t, "sign", keys[len(keys)-1])
	for i := 1; i < len(keys)-1; i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}

func TestGatewaySwitch(t *testing.T) {
	require.Equal(t,
		"https://openapi.alipaydev.com/gateway.do",
		newTestClient(t, true).Gateway())
	require.Equal(t,
		"https://openapi.alipay.com/gateway.do",
		newTestClient(t, false).Gateway())
}

func TestPayURLUsesGateway(t *testing.T) {
	c := newTestClient(t, true)
	u, err := c.PayURL("order", "2024010112000071", decimal.NewFromFloat(9.9))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "https://openapi.alipaydev.com/gateway.do?"))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	c := newTestClient(t, true)

	q, err := c.DirectPay("order 2024", "2024010112000071", decimal.NewFromFloat(25))
	require.NoError(t, err)

	// A callback arrives as decoded form values; the round trip through
	// url.ParseQuery mirrors that.
	require.True(t, c.Verify(parseQuery(t, q)))
}

func TestVerifyRejectsTamperedParams(t *testing.T) {
	c := newTestClient(t, true)

	q, err := c.DirectPay("order 2024", "2024010112000071", decimal.NewFromFloat(25))
	require.NoError(t, err)
	params := parseQuery(t, q)

	tampered := make(map[string]string, len(params))
	for k, v := range params {
		tampered[k] = v
	}
	tampered["biz_content"] = strings.Replace(tampered["biz_content"], "25.00", "25.01", 1)
	require.False(t, c.Verify(tampered))

	// Signature from a different key pair.
	other := newTestClient(t, true)
	require.False(t, other.Verify(params))
}

func TestVerifyRejectsMissingSignature(t *testing.T) {
	c := newTestClient(t, true)
	require.False(t, c.Verify(map[string]string{"out_trade_no": "x"}))
	require.False(t, c.Verify(map[string]string{"out_trade_no": "x", "sign": "not base64!!"}))
}

func TestParseKeysRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	parsedPriv, err := ParsePrivateKey(privPEM)
	require.NoError(t, err)
	require.True(t, key.Equal(parsedPriv))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	parsedPub, err := ParsePublicKey(pubPEM)
	require.NoError(t, err)
	require.True(t, key.PublicKey.Equal(parsedPub))

	_, err = ParsePrivateKey([]byte("not a key"))
	require.Error(t, err)
}
