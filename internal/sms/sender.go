package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const singleSendURL = "https://sms.yunpian.com/v2/sms/single_send.json"

// Sender delivers a verification code to a phone number. The concrete
// provider is an external collaborator; handlers only see this interface.
type Sender interface {
	Send(ctx context.Context, mobile, code string) error
}

// YunPian is the single-send SMS API client.
type YunPian struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewYunPian(apiKey string) *YunPian {
	return &YunPian{
		APIKey:  apiKey,
		BaseURL: singleSendURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (y *YunPian) Send(ctx context.Context, mobile, code string) error {
	form := url.Values{}
	form.Set("apikey", y.APIKey)
	form.Set("mobile", mobile)
	form.Set("text", fmt.Sprintf("【生鲜超市】您的验证码是%s。如非本人操作，请忽略本短信", code))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := y.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send request: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("sms: decode response: %w", err)
	}
	if body.Code != 0 {
		return fmt.Errorf("sms: provider rejected send: %s", body.Msg)
	}
	return nil
}

// GenerateCode returns a 6-digit verification code.
func GenerateCode() string {
	const digits = "0123456789"
	b := make([]byte, 6)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
