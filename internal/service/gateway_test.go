package service

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/clinic-settlement/internal/clock"
	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/gateway"
	"github.com/josh-kwaku/clinic-settlement/internal/service/ledger"
	"github.com/josh-kwaku/clinic-settlement/internal/signing"
)

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *mockLedger) ApplyGatewayResult(ctx context.Context, res ledger.GatewayResult) (*domain.Payment, bool, error) {
	args := m.Called(ctx, res)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.Payment), args.Bool(1), args.Error(2)
}

type mockGatewayEvents struct{ mock.Mock }

func (m *mockGatewayEvents) Create(ctx context.Context, event *domain.GatewayEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockGatewayEvents) Latest(ctx context.Context, orderRef string, kind domain.GatewayEventKind) (*domain.GatewayEvent, error) {
	args := m.Called(ctx, orderRef, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GatewayEvent), args.Error(1)
}

type mockQuerier struct{ mock.Mock }

func (m *mockQuerier) QueryTransaction(ctx context.Context, p gateway.QueryParams) (*gateway.Outcome, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Outcome), args.Error(1)
}

const (
	testSecret   = "test-hash-secret"
	testCode     = "PAY24010100000042"
	testOrderRef = "24010100000042"
)

var ict = time.FixedZone("ICT", 7*60*60)

func testAdapter() *gateway.Adapter {
	return gateway.NewAdapter(gateway.Config{
		BaseURL:     "https://sandbox.gateway.test/paymentv2/vpcpay.html",
		TmnCode:     "DEMO0001",
		HashSecret:  testSecret,
		ReturnURL:   "https://clinic.test/api/v1/payment/gateway-return",
		Version:     "2.1.0",
		Locale:      "vn",
		Currency:    "VND",
		AmountScale: 100,
		Location:    ict,
		ExpireAfter: 15 * time.Minute,
	})
}

type gatewayFixture struct {
	svc     *GatewayService
	ledger  *mockLedger
	events  *mockGatewayEvents
	querier *mockQuerier
}

func newGatewayFixture() *gatewayFixture {
	f := &gatewayFixture{
		ledger:  new(mockLedger),
		events:  new(mockGatewayEvents),
		querier: new(mockQuerier),
	}
	now := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	f.svc = NewGatewayService(f.ledger, f.events, testAdapter(), f.querier, clock.Fixed(now))
	return f
}

func pendingPayment() *domain.Payment {
	return &domain.Payment{
		ID:        uuid.New(),
		Code:      testCode,
		PayerName: "Nguyen Van A",
		Amount:    decimal.NewFromInt(150000),
		Status:    domain.PaymentStatusPending,
		UpdatedBy: "user:reception",
	}
}

func signedCallback(code string) url.Values {
	params := map[string]string{
		"vnp_Amount":            "15000000",
		"vnp_BankCode":          "NCB",
		"vnp_OrderInfo":         "Thanh toan " + testCode,
		"vnp_PayDate":           "20240101130500",
		"vnp_ResponseCode":      code,
		"vnp_TmnCode":           "DEMO0001",
		"vnp_TransactionNo":     "14226112",
		"vnp_TransactionStatus": code,
		"vnp_TxnRef":            testOrderRef,
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("vnp_SecureHash", signing.Sign(testSecret, signing.Canonicalize(params)))
	return q
}

func eventOfKind(kind domain.GatewayEventKind) any {
	return mock.MatchedBy(func(e *domain.GatewayEvent) bool { return e.Kind == kind })
}

func TestCreatePaymentURL(t *testing.T) {
	f := newGatewayFixture()
	p := pendingPayment()

	var recorded *domain.GatewayEvent
	f.ledger.On("Get", mock.Anything, p.ID).Return(p, nil)
	f.events.On("Create", mock.Anything, eventOfKind(domain.GatewayEventKindPaymentURL)).
		Run(func(args mock.Arguments) { recorded = args.Get(1).(*domain.GatewayEvent) }).
		Return(nil)

	checkout, err := f.svc.CreatePaymentURL(context.Background(), CheckoutRequest{PaymentID: p.ID, ClientIP: "10.0.0.7"})
	require.NoError(t, err)

	assert.Equal(t, testOrderRef, checkout.OrderRef)
	assert.Contains(t, checkout.URL, "vnp_TxnRef="+testOrderRef)
	assert.Contains(t, checkout.URL, "vnp_Amount=15000000")
	assert.Contains(t, checkout.URL, "vnp_CreateDate=20240101130000")
	require.NotNil(t, checkout.ExpiresAt)
	assert.Equal(t, 15*time.Minute, checkout.ExpiresAt.Sub(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)))

	require.NotNil(t, recorded)
	assert.Equal(t, testOrderRef, recorded.OrderRef)
	require.NotNil(t, recorded.PaymentID)
	assert.Equal(t, p.ID, *recorded.PaymentID)

	var params map[string]string
	require.NoError(t, json.Unmarshal(recorded.Params, &params))
	assert.Equal(t, "20240101130000", params["vnp_CreateDate"])
	assert.Equal(t, "10.0.0.7", params["vnp_IpAddr"])
}

func TestCreatePaymentURL_RequiresPending(t *testing.T) {
	for _, status := range []domain.PaymentStatus{
		domain.PaymentStatusCompleted,
		domain.PaymentStatusFailed,
		domain.PaymentStatusRefunded,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newGatewayFixture()
			p := pendingPayment()
			p.Status = status
			f.ledger.On("Get", mock.Anything, p.ID).Return(p, nil)

			_, err := f.svc.CreatePaymentURL(context.Background(), CheckoutRequest{PaymentID: p.ID})
			assert.ErrorIs(t, err, domain.ErrPaymentNotPending)
			assert.ErrorIs(t, err, domain.ErrConflict)
			f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCreatePaymentURL_UnknownPayment(t *testing.T) {
	f := newGatewayFixture()
	id := uuid.New()
	f.ledger.On("Get", mock.Anything, id).Return(nil, domain.ErrPaymentNotFound)

	_, err := f.svc.CreatePaymentURL(context.Background(), CheckoutRequest{PaymentID: id})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHandleReturn_Success(t *testing.T) {
	f := newGatewayFixture()
	p := pendingPayment()
	completed := *p
	completed.Status = domain.PaymentStatusCompleted
	completed.UpdatedBy = domain.GatewayActor

	f.ledger.On("ApplyGatewayResult", mock.Anything, mock.MatchedBy(func(r ledger.GatewayResult) bool {
		return r.OrderRef == testOrderRef && r.Success && r.Amount.Equal(decimal.NewFromInt(150000)) && r.TransactionNo == "14226112"
	})).Return(&completed, true, nil)
	f.events.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.GatewayEvent) bool {
		return e.Kind == domain.GatewayEventKindReturn && e.PaymentID != nil && *e.PaymentID == p.ID && e.ResponseCode == "00"
	})).Return(nil)

	res, err := f.svc.HandleReturn(context.Background(), signedCallback("00"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Payment.Status)
	f.ledger.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestHandleReturn_FailureCode(t *testing.T) {
	f := newGatewayFixture()
	p := pendingPayment()
	failed := *p
	failed.Status = domain.PaymentStatusFailed

	f.ledger.On("ApplyGatewayResult", mock.Anything, mock.MatchedBy(func(r ledger.GatewayResult) bool {
		return !r.Success && r.ResponseCode == "24"
	})).Return(&failed, true, nil)
	f.events.On("Create", mock.Anything, eventOfKind(domain.GatewayEventKindReturn)).Return(nil)

	res, err := f.svc.HandleReturn(context.Background(), signedCallback("24"))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "Customer cancelled the transaction", res.Message)
	assert.Equal(t, domain.PaymentStatusFailed, res.Payment.Status)
}

func TestHandleReturn_ForgedCallbackIsRecordedButNotApplied(t *testing.T) {
	f := newGatewayFixture()
	q := signedCallback("00")
	q.Set("vnp_Amount", "100")

	f.events.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.GatewayEvent) bool {
		return e.Kind == domain.GatewayEventKindReturn && e.PaymentID == nil && e.OrderRef == testOrderRef
	})).Return(nil)

	_, err := f.svc.HandleReturn(context.Background(), q)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.ErrorIs(t, err, domain.ErrExternalProtocol)
	f.ledger.AssertNotCalled(t, "ApplyGatewayResult", mock.Anything, mock.Anything)
	f.events.AssertExpectations(t)
}

func TestHandleReturn_LedgerRejects(t *testing.T) {
	f := newGatewayFixture()
	f.ledger.On("ApplyGatewayResult", mock.Anything, mock.Anything).Return(nil, false, domain.ErrAmountMismatch)
	f.events.On("Create", mock.Anything, eventOfKind(domain.GatewayEventKindReturn)).Return(nil)

	_, err := f.svc.HandleReturn(context.Background(), signedCallback("00"))
	assert.ErrorIs(t, err, domain.ErrAmountMismatch)
	f.events.AssertExpectations(t)
}

func TestHandleReturn_EventLogFailureDoesNotFailCallback(t *testing.T) {
	f := newGatewayFixture()
	p := pendingPayment()
	p.Status = domain.PaymentStatusCompleted
	f.ledger.On("ApplyGatewayResult", mock.Anything, mock.Anything).Return(p, true, nil)
	f.events.On("Create", mock.Anything, mock.Anything).Return(assert.AnError)

	res, err := f.svc.HandleReturn(context.Background(), signedCallback("00"))
	require.NoError(t, err)
	assert.True(t, res.Changed)
}

func issuedURL(createDate string) *domain.GatewayEvent {
	raw, _ := json.Marshal(map[string]string{"vnp_CreateDate": createDate, "vnp_TxnRef": testOrderRef})
	return &domain.GatewayEvent{
		ID:       uuid.New(),
		OrderRef: testOrderRef,
		Kind:     domain.GatewayEventKindPaymentURL,
		Params:   raw,
	}
}

func TestReconcile_AppliesVerdict(t *testing.T) {
	f := newGatewayFixture()
	p := pendingPayment()
	completed := *p
	completed.Status = domain.PaymentStatusCompleted

	f.ledger.On("Get", mock.Anything, p.ID).Return(p, nil)
	f.events.On("Latest", mock.Anything, testOrderRef, domain.GatewayEventKindPaymentURL).Return(issuedURL("20240101125500"), nil)
	f.querier.On("QueryTransaction", mock.Anything, mock.MatchedBy(func(q gateway.QueryParams) bool {
		return q.OrderRef == testOrderRef && q.TransactionDate == "20240101125500" && q.ClientIP == "10.0.0.7"
	})).Return(&gateway.Outcome{
		Success:           true,
		OrderRef:          testOrderRef,
		Amount:            decimal.NewFromInt(150000),
		ResponseCode:      "00",
		TransactionStatus: "00",
		TransactionNo:     "14226112",
		Message:           "Transaction successful",
	}, nil)
	f.events.On("Create", mock.Anything, eventOfKind(domain.GatewayEventKindQuery)).Return(nil)
	f.ledger.On("ApplyGatewayResult", mock.Anything, mock.MatchedBy(func(r ledger.GatewayResult) bool {
		return r.Success && r.OrderRef == testOrderRef
	})).Return(&completed, true, nil)

	res, err := f.svc.Reconcile(context.Background(), p.ID, "10.0.0.7")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Payment.Status)
	f.querier.AssertExpectations(t)
}

func TestReconcile_RejectsAnswerForOtherOrder(t *testing.T) {
	f := newGatewayFixture()
	p := pendingPayment()

	f.ledger.On("Get", mock.Anything, p.ID).Return(p, nil)
	f.events.On("Latest", mock.Anything, testOrderRef, domain.GatewayEventKindPaymentURL).Return(issuedURL("20240101125500"), nil)
	f.querier.On("QueryTransaction", mock.Anything, mock.Anything).Return(&gateway.Outcome{
		Success:           true,
		OrderRef:          "24010100000099",
		Amount:            decimal.NewFromInt(150000),
		ResponseCode:      "00",
		TransactionStatus: "00",
	}, nil)
	f.events.On("Create", mock.Anything, eventOfKind(domain.GatewayEventKindQuery)).Return(nil)

	_, err := f.svc.Reconcile(context.Background(), p.ID, "")
	require.ErrorIs(t, err, gateway.ErrOrderMismatch)
	require.ErrorIs(t, err, domain.ErrExternalProtocol)
	f.ledger.AssertNotCalled(t, "ApplyGatewayResult", mock.Anything, mock.Anything)
}

func TestReconcile_TimeoutFailsClosed(t *testing.T) {
	f := newGatewayFixture()
	p := pendingPayment()

	f.ledger.On("Get", mock.Anything, p.ID).Return(p, nil)
	f.events.On("Latest", mock.Anything, testOrderRef, domain.GatewayEventKindPaymentURL).Return(issuedURL("20240101125500"), nil)
	f.querier.On("QueryTransaction", mock.Anything, mock.Anything).Return(nil, domain.ErrGatewayUnavailable)

	_, err := f.svc.Reconcile(context.Background(), p.ID, "")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	f.ledger.AssertNotCalled(t, "ApplyGatewayResult", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReconcile_InFlightLeavesPayment(t *testing.T) {
	f := newGatewayFixture()
	p := pendingPayment()

	f.ledger.On("Get", mock.Anything, p.ID).Return(p, nil)
	f.events.On("Latest", mock.Anything, testOrderRef, domain.GatewayEventKindPaymentURL).Return(issuedURL("20240101125500"), nil)
	f.querier.On("QueryTransaction", mock.Anything, mock.Anything).Return(&gateway.Outcome{
		OrderRef:          testOrderRef,
		ResponseCode:      "00",
		TransactionStatus: "01",
	}, nil)
	f.events.On("Create", mock.Anything, eventOfKind(domain.GatewayEventKindQuery)).Return(nil)

	res, err := f.svc.Reconcile(context.Background(), p.ID, "")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, domain.PaymentStatusPending, res.Payment.Status)
	f.ledger.AssertNotCalled(t, "ApplyGatewayResult", mock.Anything, mock.Anything)
}

func TestReconcile_WithoutIssuedURL(t *testing.T) {
	f := newGatewayFixture()
	p := pendingPayment()

	f.ledger.On("Get", mock.Anything, p.ID).Return(p, nil)
	f.events.On("Latest", mock.Anything, testOrderRef, domain.GatewayEventKindPaymentURL).Return(nil, domain.ErrNotFound)

	_, err := f.svc.Reconcile(context.Background(), p.ID, "")
	assert.ErrorIs(t, err, domain.ErrNoCheckout)
	f.querier.AssertNotCalled(t, "QueryTransaction", mock.Anything, mock.Anything)
}
