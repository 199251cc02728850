package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+254712345678", "254712345678"},
		{"0712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{" 0712345678 ", "254712345678"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.in))
		})
	}
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("254712345678"))
	assert.False(t, ValidPhone("0712345678"))
	assert.False(t, ValidPhone("25471234567"))
	assert.False(t, ValidPhone("255712345678"))
}

func newGatewayStub(t *testing.T, tokenCalls *int32, push http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)

		auth := r.Header.Get("Authorization")
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
		assert.Equal(t, want, auth)

		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-123",
			"expires_in":   "3599",
		})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", push)

	return httptest.NewServer(mux)
}

func TestInitiateSTKPush(t *testing.T) {
	var tokenCalls int32
	var got stkPushRequest

	srv := newGatewayStub(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CheckoutRequestID":   "ws_CO_01012024",
			"MerchantRequestID":   "1234-5678",
		})
	})
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/callback",
	})

	res, err := c.InitiateSTKPush(context.Background(), "0712345678", 150050, "EV-abc123", "tickets")
	require.NoError(t, err)

	assert.Equal(t, "ws_CO_01012024", res.CheckoutRequestID)
	assert.Equal(t, "1234-5678", res.MerchantRequestID)

	assert.Equal(t, "174379", got.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", got.TransactionType)
	// 150050 cents rounds up to 1501 whole units
	assert.Equal(t, int64(1501), got.Amount)
	assert.Equal(t, "254712345678", got.PartyA)
	assert.Equal(t, "254712345678", got.PhoneNumber)
	assert.Equal(t, "https://example.com/callback", got.CallBackURL)
	assert.Equal(t, "EV-abc123", got.AccountReference)

	// password is base64(shortcode + passkey + timestamp)
	decoded, err := base64.StdEncoding.DecodeString(got.Password)
	require.NoError(t, err)
	assert.Equal(t, "174379passkey"+got.Timestamp, string(decoded))
}

func TestInitiateSTKPush_TokenCached(t *testing.T) {
	var tokenCalls int32

	srv := newGatewayStub(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_x",
		})
	})
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
	})

	for i := 0; i < 3; i++ {
		_, err := c.InitiateSTKPush(context.Background(), "0712345678", 100, "ref", "desc")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestInitiateSTKPush_TruncatesAccountReference(t *testing.T) {
	var tokenCalls int32
	var got stkPushRequest

	srv := newGatewayStub(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":      "0",
			"CheckoutRequestID": "ws_CO_x",
		})
	})
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
	})

	_, err := c.InitiateSTKPush(context.Background(), "0712345678", 100, "EV-0123456789abcdef", "desc")
	require.NoError(t, err)

	assert.Equal(t, "EV-012345678", got.AccountReference)
	assert.Len(t, got.AccountReference, 12)
}

func TestInitiateSTKPush_Rejected(t *testing.T) {
	var tokenCalls int32

	srv := newGatewayStub(t, &tokenCalls, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode": "1",
			"errorMessage": "Invalid PhoneNumber",
		})
	})
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
	})

	_, err := c.InitiateSTKPush(context.Background(), "0712345678", 100, "ref", "desc")
	assert.ErrorIs(t, err, ErrInitiateFailed)
	assert.Contains(t, err.Error(), "Invalid PhoneNumber")
}

func TestStkCallback_Success(t *testing.T) {
	raw := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "1234-5678",
				"CheckoutRequestID": "ws_CO_01012024",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully."
			}
		}
	}`

	var env CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))

	cb := env.Body.StkCallback
	assert.Equal(t, "ws_CO_01012024", cb.CheckoutRequestID)
	assert.True(t, cb.Success())

	cb.ResultCode = 1032
	assert.False(t, cb.Success())
}
