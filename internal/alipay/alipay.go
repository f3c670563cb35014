package alipay

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	gatewayURL        = "https://openapi.alipay.com/gateway.do"
	sandboxGatewayURL = "https://openapi.alipaydev.com/gateway.do"

	methodPagePay = "alipay.trade.page.pay"
	productCode   = "FAST_INSTANT_TRADE_PAY"
)

var ErrInvalidSignature = errors.New("invalid callback signature")

// Config holds the merchant-side credentials. PublicKey is the provider's
// key and is only used to verify inbound callbacks; outbound requests are
// signed with the merchant PrivateKey.
type Config struct {
	AppID      string
	NotifyURL  string
	ReturnURL  string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
	Sandbox    bool
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func NewFromFiles(appID, notifyURL, returnURL, privateKeyPath, publicKeyPath string, sandbox bool) (*Client, error) {
	privPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	priv, err := ParsePrivateKey(privPEM)
	if err != nil {
		return nil, err
	}

	pubPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read alipay public key: %w", err)
	}
	pub, err := ParsePublicKey(pubPEM)
	if err != nil {
		return nil, err
	}

	return New(Config{
		AppID:      appID,
		NotifyURL:  notifyURL,
		ReturnURL:  returnURL,
		PrivateKey: priv,
		PublicKey:  pub,
		Sandbox:    sandbox,
	}), nil
}

func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("private key: no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key: not an RSA key")
	}
	return key, nil
}

func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("public key: no PEM block found")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key: not an RSA key")
	}
	return key, nil
}

func (c *Client) Gateway() string {
	if c.cfg.Sandbox {
		return sandboxGatewayURL
	}
	return gatewayURL
}

// DirectPay builds the signed query string for the page-pay product. The
// result is appended to the gateway URL as-is.
func (c *Client) DirectPay(subject, outTradeNo string, totalAmount decimal.Decimal) (string, error) {
	biz := map[string]any{
		"subject":      subject,
		"out_trade_no": outTradeNo,
		"total_amount": totalAmount.StringFixed(2),
		"product_code": productCode,
	}
	return c.signParams(c.buildBody(methodPagePay, biz))
}

// PayURL is DirectPay with the gateway prepended, ready for a browser
// redirect.
func (c *Client) PayURL(subject, outTradeNo string, totalAmount decimal.Decimal) (string, error) {
	q, err := c.DirectPay(subject, outTradeNo, totalAmount)
	if err != nil {
		return "", err
	}
	return c.Gateway() + "?" + q, nil
}

func (c *Client) buildBody(method string, biz map[string]any) map[string]any {
	data := map[string]any{
		"app_id":      c.cfg.AppID,
		"method":      method,
		"charset":     "utf-8",
		"sign_type":   "RSA2",
		"timestamp":   time.Now().Format("2006-01-02 15:04:05"),
		"version":     "1.0",
		"biz_content": biz,
	}
	if c.cfg.NotifyURL != "" {
		data["notify_url"] = c.cfg.NotifyURL
	}
	if c.cfg.ReturnURL != "" {
		data["return_url"] = c.cfg.ReturnURL
	}
	return data
}

// signParams produces the final query string: the signature covers the
// lexicographically sorted, unescaped key=value payload, then the same pairs
// are re-joined percent-encoded with the signature appended.
func (c *Client) signParams(data map[string]any) (string, error) {
	delete(data, "sign")

	pairs, err := orderedPairs(data)
	if err != nil {
		return "", err
	}

	unsigned := make([]string, 0, len(pairs))
	for _, p := range pairs {
		unsigned = append(unsigned, p.key+"="+p.value)
	}
	sig, err := c.sign([]byte(strings.Join(unsigned, "&")))
	if err != nil {
		return "", err
	}

	quoted := make([]string, 0, len(pairs))
	for _, p := range pairs {
		quoted = append(quoted, p.key+"="+url.QueryEscape(p.value))
	}
	return strings.Join(quoted, "&") + "&sign=" + url.QueryEscape(sig), nil
}

// Verify checks a callback parameter set against the provider's public key.
// sign and sign_type are excluded from the signed payload. Unverified
// callbacks must never be trusted.
func (c *Client) Verify(params map[string]string) bool {
	sig, ok := params["sign"]
	if !ok || sig == "" {
		return false
	}

	data := make(map[string]any, len(params))
	for k, v := range params {
		if k == "sign" || k == "sign_type" {
			continue
		}
		data[k] = v
	}
	pairs, err := orderedPairs(data)
	if err != nil {
		return false
	}
	joined := make([]string, 0, len(pairs))
	for _, p := range pairs {
		joined = append(joined, p.key+"="+p.value)
	}

	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(strings.Join(joined, "&")))
	return rsa.VerifyPKCS1v15(c.cfg.PublicKey, crypto.SHA256, digest[:], raw) == nil
}

func (c *Client) sign(payload []byte) (string, error) {
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, c.cfg.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

type pair struct {
	key   string
	value string
}

// orderedPairs serializes nested values to compact JSON and sorts all
// top-level parameters by key, the canonical form both signing and
// verification rebuild.
func orderedPairs(data map[string]any) ([]pair, error) {
	out := make([]pair, 0, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case string:
			out = append(out, pair{k, val})
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("serialize %s: %w", k, err)
			}
			out = append(out, pair{k, string(b)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out, nil
}
