package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/clinic-settlement/internal/gateway"
	"github.com/josh-kwaku/clinic-settlement/internal/signing"
)

const (
	queryCodeInvalidSignature = "97"
	queryCodeNotFound         = "91"
	queryCodeBadRequest       = "99"
)

type transaction struct {
	amount        string
	orderInfo     string
	bankCode      string
	status        string
	transactionNo string
	payDate       string
}

type server struct {
	tmnCode      string
	secret       string
	responseCode string
	loc          *time.Location
	now          func() time.Time

	seq atomic.Int64

	mu  sync.Mutex
	txs map[string]*transaction
}

func newServer(tmnCode, secret, responseCode string, loc *time.Location, now func() time.Time) *server {
	return &server{
		tmnCode:      tmnCode,
		secret:       secret,
		responseCode: responseCode,
		loc:          loc,
		now:          now,
		txs:          make(map[string]*transaction),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /paymentv2/vpcpay.html", s.pay)
	mux.HandleFunc("POST /merchant_webapi/api/transaction", s.queryDR)
	return mux
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pay checks the merchant's signature and sends the payer straight back to
// vnp_ReturnUrl with a signed result carrying the configured response code.
func (s *server) pay(w http.ResponseWriter, r *http.Request) {
	params := firstValues(r.URL.Query())

	if !signing.Verify(s.secret, params, params["vnp_SecureHash"]) {
		slog.Warn("payment url rejected: bad signature", "txn_ref", params["vnp_TxnRef"])
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}
	if params["vnp_TmnCode"] != s.tmnCode {
		http.Error(w, "unknown merchant", http.StatusBadRequest)
		return
	}
	returnURL, err := url.Parse(params["vnp_ReturnUrl"])
	if err != nil || params["vnp_ReturnUrl"] == "" {
		http.Error(w, "invalid return url", http.StatusBadRequest)
		return
	}

	bankCode := params["vnp_BankCode"]
	if bankCode == "" {
		bankCode = "NCB"
	}

	tx := &transaction{
		amount:        params["vnp_Amount"],
		orderInfo:     params["vnp_OrderInfo"],
		bankCode:      bankCode,
		status:        s.responseCode,
		transactionNo: strconv.FormatInt(14000000+s.seq.Add(1), 10),
		payDate:       s.now().In(s.loc).Format(gateway.DateLayout),
	}

	s.mu.Lock()
	s.txs[params["vnp_TxnRef"]] = tx
	s.mu.Unlock()

	result := map[string]string{
		"vnp_Amount":            tx.amount,
		"vnp_BankCode":          tx.bankCode,
		"vnp_CardType":          "ATM",
		"vnp_OrderInfo":         tx.orderInfo,
		"vnp_PayDate":           tx.payDate,
		"vnp_ResponseCode":      s.responseCode,
		"vnp_TmnCode":           s.tmnCode,
		"vnp_TransactionNo":     tx.transactionNo,
		"vnp_TransactionStatus": s.responseCode,
		"vnp_TxnRef":            params["vnp_TxnRef"],
	}
	hash := signing.Sign(s.secret, signing.Canonicalize(result))

	returnURL.RawQuery = signing.Canonicalize(result) + "&vnp_SecureHash=" + hash

	slog.Info("payment processed",
		"txn_ref", params["vnp_TxnRef"],
		"response_code", s.responseCode,
		"transaction_no", tx.transactionNo,
	)
	http.Redirect(w, r, returnURL.String(), http.StatusFound)
}

func (s *server) queryDR(w http.ResponseWriter, r *http.Request) {
	var req gateway.QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, s.signed(gateway.QueryResponse{ResponseCode: queryCodeBadRequest, Message: "Invalid request"}))
		return
	}

	resp := gateway.QueryResponse{
		Command: req.Command,
		TmnCode: s.tmnCode,
		TxnRef:  req.TxnRef,
	}

	want := signing.SignFields(s.secret, req.SignatureFields()...)
	if !signing.Equal(want, req.SecureHash) {
		resp.ResponseCode = queryCodeInvalidSignature
		resp.Message = "Invalid Checksum"
		writeJSON(w, http.StatusOK, s.signed(resp))
		return
	}

	s.mu.Lock()
	tx, ok := s.txs[req.TxnRef]
	s.mu.Unlock()

	if !ok {
		resp.ResponseCode = queryCodeNotFound
		resp.Message = "Transaction not found"
		writeJSON(w, http.StatusOK, s.signed(resp))
		return
	}

	resp.ResponseCode = gateway.SuccessCode
	resp.Message = "QueryDR Success"
	resp.Amount = tx.amount
	resp.BankCode = tx.bankCode
	resp.OrderInfo = tx.orderInfo
	resp.PayDate = tx.payDate
	resp.TransactionNo = tx.transactionNo
	resp.TransactionType = "01"
	resp.TransactionStatus = tx.status

	slog.Info("querydr answered", "txn_ref", req.TxnRef, "transaction_status", tx.status)
	writeJSON(w, http.StatusOK, s.signed(resp))
}

func (s *server) signed(resp gateway.QueryResponse) gateway.QueryResponse {
	resp.ResponseID = strings.ReplaceAll(uuid.NewString(), "-", "")
	resp.SecureHash = signing.SignFields(s.secret, resp.SignatureFields()...)
	return resp
}

func firstValues(q url.Values) map[string]string {
	params := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
