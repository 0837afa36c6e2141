package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/logging"
	"github.com/josh-kwaku/clinic-settlement/internal/signing"
)

// QueryRequest is the body of the gateway's querydr call.
type QueryRequest struct {
	RequestID       string `json:"vnp_RequestId"`
	Version         string `json:"vnp_Version"`
	Command         string `json:"vnp_Command"`
	TmnCode         string `json:"vnp_TmnCode"`
	TxnRef          string `json:"vnp_TxnRef"`
	OrderInfo       string `json:"vnp_OrderInfo"`
	TransactionDate string `json:"vnp_TransactionDate"`
	CreateDate      string `json:"vnp_CreateDate"`
	IPAddr          string `json:"vnp_IpAddr"`
	SecureHash      string `json:"vnp_SecureHash"`
}

func (r QueryRequest) SignatureFields() []string {
	return []string{
		r.RequestID, r.Version, r.Command, r.TmnCode, r.TxnRef,
		r.TransactionDate, r.CreateDate, r.IPAddr, r.OrderInfo,
	}
}

// QueryResponse is the gateway's answer to querydr.
type QueryResponse struct {
	ResponseID        string `json:"vnp_ResponseId"`
	Command           string `json:"vnp_Command"`
	ResponseCode      string `json:"vnp_ResponseCode"`
	Message           string `json:"vnp_Message"`
	TmnCode           string `json:"vnp_TmnCode"`
	TxnRef            string `json:"vnp_TxnRef"`
	Amount            string `json:"vnp_Amount"`
	BankCode          string `json:"vnp_BankCode"`
	PayDate           string `json:"vnp_PayDate"`
	TransactionNo     string `json:"vnp_TransactionNo"`
	TransactionType   string `json:"vnp_TransactionType"`
	TransactionStatus string `json:"vnp_TransactionStatus"`
	OrderInfo         string `json:"vnp_OrderInfo"`
	PromotionCode     string `json:"vnp_PromotionCode"`
	PromotionAmount   string `json:"vnp_PromotionAmount"`
	SecureHash        string `json:"vnp_SecureHash"`
}

func (r QueryResponse) SignatureFields() []string {
	return []string{
		r.ResponseID, r.Command, r.ResponseCode, r.Message, r.TmnCode,
		r.TxnRef, r.Amount, r.BankCode, r.PayDate, r.TransactionNo,
		r.TransactionType, r.TransactionStatus, r.OrderInfo,
		r.PromotionCode, r.PromotionAmount,
	}
}

// Client calls the gateway's server-to-server API. Every call is bounded by
// the configured timeout.
type Client struct {
	apiURL     string
	adapter    *Adapter
	httpClient *http.Client
}

func NewClient(apiURL string, adapter *Adapter, timeout time.Duration) *Client {
	return &Client{
		apiURL:  apiURL,
		adapter: adapter,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type QueryParams struct {
	OrderRef        string
	OrderInfo       string
	TransactionDate string
	ClientIP        string
	Now             time.Time
}

// QueryTransaction asks the gateway for the current state of a transaction.
// Any transport failure, including a timeout, is reported as
// ErrGatewayUnavailable and never as a success.
func (c *Client) QueryTransaction(ctx context.Context, p QueryParams) (*Outcome, error) {
	log := logging.FromContext(ctx)
	cfg := c.adapter.cfg

	ip := p.ClientIP
	if ip == "" {
		ip = PlaceholderIP
	}

	req := QueryRequest{
		RequestID:       strings.ReplaceAll(uuid.NewString(), "-", ""),
		Version:         cfg.Version,
		Command:         "querydr",
		TmnCode:         cfg.TmnCode,
		TxnRef:          p.OrderRef,
		OrderInfo:       p.OrderInfo,
		TransactionDate: p.TransactionDate,
		CreateDate:      p.Now.In(cfg.Location).Format(DateLayout),
		IPAddr:          ip,
	}
	req.SecureHash = signing.SignFields(cfg.HashSecret, req.SignatureFields()...)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("QueryTransaction: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("QueryTransaction: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	log.Info("gateway query sent", "order_ref", p.OrderRef, "request_id", req.RequestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("QueryTransaction: send: %w: %w", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	log.Info("gateway query answered",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("QueryTransaction: unexpected status %d: %s: %w", resp.StatusCode, string(respBody), domain.ErrGatewayUnavailable)
	}

	var qr QueryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&qr); err != nil {
		return nil, fmt.Errorf("QueryTransaction: decode: %w: %w", domain.ErrMalformedCallback, err)
	}

	return c.adapter.interpretQuery(qr, p.OrderRef)
}

// interpretQuery verifies a querydr answer and binds it to the merchant and
// the order that was asked about.
func (a *Adapter) interpretQuery(qr QueryResponse, orderRef string) (*Outcome, error) {
	expected := signing.SignFields(a.cfg.HashSecret, qr.SignatureFields()...)
	if !signing.Equal(expected, qr.SecureHash) {
		return nil, fmt.Errorf("interpretQuery: %w", domain.ErrInvalidSignature)
	}
	if qr.ResponseCode != SuccessCode {
		return nil, fmt.Errorf("interpretQuery: gateway answered %s (%s): %w", qr.ResponseCode, qr.Message, domain.ErrExternalProtocol)
	}

	if qr.TmnCode != a.cfg.TmnCode {
		return nil, fmt.Errorf("interpretQuery: %q: %w", qr.TmnCode, ErrMerchantMismatch)
	}
	if qr.TxnRef != orderRef {
		return nil, fmt.Errorf("interpretQuery: asked %s, got %s: %w", orderRef, qr.TxnRef, ErrOrderMismatch)
	}

	amount, err := a.unscaleAmount(qr.Amount)
	if err != nil {
		return nil, fmt.Errorf("interpretQuery: %q: %w", qr.Amount, ErrUnparseableAmount)
	}

	return &Outcome{
		Success:           qr.TransactionStatus == SuccessCode,
		OrderRef:          qr.TxnRef,
		Amount:            amount,
		ResponseCode:      qr.ResponseCode,
		TransactionStatus: qr.TransactionStatus,
		TransactionNo:     qr.TransactionNo,
		BankCode:          qr.BankCode,
		PayDate:           a.parseDate(qr.PayDate),
		Message:           ResponseMessage(qr.TransactionStatus),
		Params: map[string]string{
			"vnp_ResponseId":        qr.ResponseID,
			"vnp_ResponseCode":      qr.ResponseCode,
			"vnp_TxnRef":            qr.TxnRef,
			"vnp_Amount":            qr.Amount,
			"vnp_TransactionNo":     qr.TransactionNo,
			"vnp_TransactionStatus": qr.TransactionStatus,
			"vnp_PayDate":           qr.PayDate,
		},
	}, nil
}

// InFlight reports whether a querydr transaction status means the customer
// has not finished paying yet. Such answers carry no verdict.
func InFlight(transactionStatus string) bool {
	switch transactionStatus {
	case "01", "05", "06":
		return true
	}
	return false
}
