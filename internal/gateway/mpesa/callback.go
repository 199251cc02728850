package mpesa

// CallbackEnvelope is the JSON body the gateway POSTs to the callback URL
// after the customer completes or declines the STK prompt.
type CallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
}

func (c StkCallback) Success() bool {
	return c.ResultCode == ResultSuccess
}
