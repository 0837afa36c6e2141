// Package gateway speaks the payment gateway's redirect protocol: it builds
// signed payment URLs, derives order references from payment codes and
// interprets the signed results the gateway sends back.
package gateway

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/signing"
)

const (
	// DateLayout is the gateway's yyyyMMddHHmmss timestamp format.
	DateLayout = "20060102150405"

	// OrderRefLength is the number of trailing payment-code digits sent as
	// the transaction reference.
	OrderRefLength = 14

	// PlaceholderIP is sent when the client address is unknown.
	PlaceholderIP = "127.0.0.1"

	// TestModeHash stands in for a signature on callbacks replayed by
	// integration tests. It is honoured only when Config.TestMode is set.
	TestModeHash = "TEST_MODE"

	SuccessCode = "00"
)

var (
	ErrCodeTooShort      = fmt.Errorf("payment code too short: %w", domain.ErrValidation)
	ErrNonNumericSuffix  = fmt.Errorf("payment code has a non-numeric suffix: %w", domain.ErrValidation)
	ErrMissingHash       = fmt.Errorf("missing secure hash: %w", domain.ErrInvalidSignature)
	ErrMerchantMismatch  = fmt.Errorf("merchant code mismatch: %w", domain.ErrMalformedCallback)
	ErrMissingParameter  = fmt.Errorf("missing parameter: %w", domain.ErrMalformedCallback)
	ErrUnparseableAmount = fmt.Errorf("unparseable amount: %w", domain.ErrMalformedCallback)
	ErrOrderMismatch     = fmt.Errorf("answer is for another order: %w", domain.ErrMalformedCallback)
)

type Config struct {
	BaseURL     string
	TmnCode     string
	HashSecret  string
	ReturnURL   string
	Version     string
	Locale      string
	Currency    string
	OrderType   string
	AmountScale int64
	Location    *time.Location
	ExpireAfter time.Duration
	TestMode    bool
}

type Adapter struct {
	cfg Config
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.AmountScale <= 0 {
		cfg.AmountScale = 100
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.OrderType == "" {
		cfg.OrderType = "other"
	}
	return &Adapter{cfg: cfg}
}

func (a *Adapter) Location() *time.Location { return a.cfg.Location }

func (a *Adapter) ExpireAfter() time.Duration { return a.cfg.ExpireAfter }

type PaymentRequest struct {
	PaymentCode string
	Amount      decimal.Decimal
	OrderInfo   string
	ClientIP    string
	BankCode    string
	CreatedAt   time.Time
}

type PaymentURL struct {
	URL        string
	OrderRef   string
	CreateDate string
	Params     map[string]string
}

// BuildPaymentURL assembles and signs the redirect URL for one payment.
func (a *Adapter) BuildPaymentURL(req PaymentRequest) (*PaymentURL, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("BuildPaymentURL: %w", domain.ErrInvalidAmount)
	}

	orderRef, err := DeriveOrderReference(req.PaymentCode)
	if err != nil {
		return nil, fmt.Errorf("BuildPaymentURL: %w", err)
	}

	ip := req.ClientIP
	if ip == "" {
		ip = PlaceholderIP
	}

	orderInfo := req.OrderInfo
	if orderInfo == "" {
		orderInfo = "Thanh toan " + req.PaymentCode
	}

	created := req.CreatedAt.In(a.cfg.Location)
	createDate := created.Format(DateLayout)

	params := map[string]string{
		"vnp_Version":    a.cfg.Version,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    a.cfg.TmnCode,
		"vnp_Amount":     a.scaleAmount(req.Amount),
		"vnp_CurrCode":   a.cfg.Currency,
		"vnp_TxnRef":     orderRef,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  a.cfg.OrderType,
		"vnp_Locale":     a.cfg.Locale,
		"vnp_ReturnUrl":  a.cfg.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": createDate,
		"vnp_BankCode":   req.BankCode,
	}
	if a.cfg.ExpireAfter > 0 {
		params["vnp_ExpireDate"] = created.Add(a.cfg.ExpireAfter).Format(DateLayout)
	}

	canonical := signing.Canonicalize(params)
	hash := signing.Sign(a.cfg.HashSecret, canonical)

	return &PaymentURL{
		URL:        a.cfg.BaseURL + "?" + canonical + "&vnp_SecureHash=" + hash,
		OrderRef:   orderRef,
		CreateDate: createDate,
		Params:     params,
	}, nil
}

func (a *Adapter) scaleAmount(amount decimal.Decimal) string {
	return amount.Mul(decimal.NewFromInt(a.cfg.AmountScale)).Round(0).String()
}

func (a *Adapter) unscaleAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Div(decimal.NewFromInt(a.cfg.AmountScale)), nil
}

// DeriveOrderReference returns the trailing OrderRefLength characters of a
// payment code, which must all be ASCII digits.
func DeriveOrderReference(paymentCode string) (string, error) {
	n := utf8.RuneCountInString(paymentCode)
	if n < OrderRefLength {
		return "", fmt.Errorf("DeriveOrderReference: %q: %w", paymentCode, ErrCodeTooShort)
	}
	runes := []rune(paymentCode)
	suffix := runes[n-OrderRefLength:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("DeriveOrderReference: %q: %w", paymentCode, ErrNonNumericSuffix)
		}
	}
	return string(suffix), nil
}

// Outcome is the gateway's verdict on one transaction.
type Outcome struct {
	Success           bool
	OrderRef          string
	Amount            decimal.Decimal
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	PayDate           *time.Time
	Message           string
	TestMode          bool
	Params            map[string]string
}

// ParseCallback verifies and decodes the query string of a gateway return.
func (a *Adapter) ParseCallback(query url.Values) (*Outcome, error) {
	params := make(map[string]string, len(query))
	for k, v := range query {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	hash := params["vnp_SecureHash"]
	testMode := false
	switch {
	case hash == "":
		return nil, fmt.Errorf("ParseCallback: %w", ErrMissingHash)
	case a.cfg.TestMode && hash == TestModeHash:
		testMode = true
	case !signing.Verify(a.cfg.HashSecret, params, hash):
		return nil, fmt.Errorf("ParseCallback: %w", domain.ErrInvalidSignature)
	}

	for _, k := range []string{"vnp_ResponseCode", "vnp_TxnRef", "vnp_Amount"} {
		if params[k] == "" {
			return nil, fmt.Errorf("ParseCallback: %s: %w", k, ErrMissingParameter)
		}
	}

	if tmn := params["vnp_TmnCode"]; tmn != "" && tmn != a.cfg.TmnCode {
		return nil, fmt.Errorf("ParseCallback: %w", ErrMerchantMismatch)
	}

	amount, err := a.unscaleAmount(params["vnp_Amount"])
	if err != nil {
		return nil, fmt.Errorf("ParseCallback: %q: %w", params["vnp_Amount"], ErrUnparseableAmount)
	}

	code := params["vnp_ResponseCode"]
	out := &Outcome{
		Success:           code == SuccessCode,
		OrderRef:          params["vnp_TxnRef"],
		Amount:            amount,
		ResponseCode:      code,
		TransactionStatus: params["vnp_TransactionStatus"],
		TransactionNo:     params["vnp_TransactionNo"],
		BankCode:          params["vnp_BankCode"],
		PayDate:           a.parseDate(params["vnp_PayDate"]),
		Message:           ResponseMessage(code),
		TestMode:          testMode,
		Params:            params,
	}
	return out, nil
}

func (a *Adapter) parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(DateLayout, s, a.cfg.Location)
	if err != nil {
		return nil
	}
	return &t
}

var responseMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Amount deducted; transaction flagged as suspicious",
	"09": "Card or account is not registered for internet banking",
	"10": "Card or account verification failed more than 3 times",
	"11": "Payment window expired",
	"12": "Card or account is locked",
	"13": "Incorrect OTP",
	"24": "Customer cancelled the transaction",
	"51": "Insufficient balance",
	"65": "Daily transaction limit exceeded",
	"75": "Issuing bank is under maintenance",
	"79": "Payment password entered incorrectly too many times",
	"99": "Unspecified gateway error",
}

// ResponseMessage translates a gateway response code.
func ResponseMessage(code string) string {
	if m, ok := responseMessages[code]; ok {
		return m
	}
	return "Unknown response code " + strconv.Quote(strings.TrimSpace(code))
}
