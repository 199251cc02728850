// Package mpesa is a minimal client for the Safaricom Daraja STK-push
// flow: OAuth token issuance with caching, payment initiation, and the
// asynchronous callback envelope.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"

	// ResultSuccess is the callback ResultCode for a completed payment;
	// any other code is a decline.
	ResultSuccess = 0
)

var ErrInitiateFailed = errors.New("stk push rejected")

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxBaseURL
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// NormalizePhone coerces common Kenyan phone spellings to the
// 2547XXXXXXXX format the API requires.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	switch {
	case strings.HasPrefix(phone, "+254"):
		return phone[1:]
	case strings.HasPrefix(phone, "0"):
		return "254" + phone[1:]
	case strings.HasPrefix(phone, "254"):
		return phone
	default:
		return "254" + phone
	}
}

// ValidPhone reports whether phone is already in 2547XXXXXXXX form.
func ValidPhone(phone string) bool {
	return len(phone) == 12 && strings.HasPrefix(phone, "254")
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	const op = "mpesa.Client.authToken"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials",
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	basic := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret),
	)
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	if tr.AccessToken == "" {
		return "", fmt.Errorf("%s: empty access token", op)
	}

	c.token = tr.AccessToken
	// tokens last ~an hour; refresh slightly early
	c.tokenExpiry = time.Now().Add(3500 * time.Second)

	return c.token, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	ErrorMessage        string `json:"errorMessage"`
}

type STKPushResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	Description       string
}

// InitiateSTKPush asks the gateway to prompt the phone for payment.
// amountCents is converted to whole currency units, rounded up, because
// the API only accepts integral amounts.
//
// Returns:
//   - *STKPushResult: the provider reference identifying the later callback.
//   - error: mpesa.ErrInitiateFailed when the gateway rejects the request.
func (c *Client) InitiateSTKPush(
	ctx context.Context,
	phone string,
	amountCents int64,
	accountReference string,
	description string,
) (*STKPushResult, error) {
	const op = "mpesa.Client.InitiateSTKPush"

	token, err := c.authToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	phone = NormalizePhone(phone)
	ts := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ShortCode + c.cfg.Passkey + ts),
	)

	if len(accountReference) > 12 {
		accountReference = accountReference[:12]
	}

	body := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            (amountCents + 99) / 100,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   description,
	}

	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest",
		bytes.NewReader(b),
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var sr stkPushResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if sr.ResponseCode != "0" {
		msg := sr.ErrorMessage
		if msg == "" {
			msg = sr.ResponseDescription
		}
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInitiateFailed, msg)
	}

	return &STKPushResult{
		CheckoutRequestID: sr.CheckoutRequestID,
		MerchantRequestID: sr.MerchantRequestID,
		Description:       sr.ResponseDescription,
	}, nil
}
