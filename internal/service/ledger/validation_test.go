package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
)

var ict = time.FixedZone("ICT", 7*60*60)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestResolveFilter_Defaults(t *testing.T) {
	svc := &Service{loc: ict}

	rf, err := svc.resolveFilter(ListFilter{})
	require.NoError(t, err)

	assert.Equal(t, DefaultPageSize, rf.Limit)
	assert.Equal(t, 0, rf.Offset)
	assert.Equal(t, domain.PaymentSortDate, rf.SortBy)
	assert.True(t, rf.Desc)
	assert.Nil(t, rf.From)
	assert.Nil(t, rf.Until)
}

func TestResolveFilter(t *testing.T) {
	svc := &Service{loc: ict}

	tests := []struct {
		name       string
		filter     ListFilter
		wantLimit  int
		wantOffset int
		wantSort   domain.PaymentSortField
		wantDesc   bool
	}{
		{name: "page 3 of 10", filter: ListFilter{Page: 3, PageSize: 10}, wantLimit: 10, wantOffset: 20, wantSort: domain.PaymentSortDate, wantDesc: true},
		{name: "page size capped", filter: ListFilter{PageSize: 1000}, wantLimit: MaxPageSize, wantSort: domain.PaymentSortDate, wantDesc: true},
		{name: "negative page", filter: ListFilter{Page: -2, PageSize: 5}, wantLimit: 5, wantSort: domain.PaymentSortDate, wantDesc: true},
		{name: "sort by payer ascending", filter: ListFilter{SortBy: "payerName", SortOrder: "ASC"}, wantLimit: DefaultPageSize, wantSort: domain.PaymentSortPayer},
		{name: "sort by amount", filter: ListFilter{SortBy: "amount", SortOrder: "desc"}, wantLimit: DefaultPageSize, wantSort: domain.PaymentSortAmount, wantDesc: true},
		{name: "sort by method", filter: ListFilter{SortBy: "paymentMethod"}, wantLimit: DefaultPageSize, wantSort: domain.PaymentSortMethod, wantDesc: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rf, err := svc.resolveFilter(tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.wantLimit, rf.Limit)
			assert.Equal(t, tc.wantOffset, rf.Offset)
			assert.Equal(t, tc.wantSort, rf.SortBy)
			assert.Equal(t, tc.wantDesc, rf.Desc)
		})
	}
}

func TestResolveFilter_DateRangeIsInclusive(t *testing.T) {
	svc := &Service{loc: ict}

	rf, err := svc.resolveFilter(ListFilter{
		FromDate: date(2024, 3, 1),
		ToDate:   date(2024, 3, 1),
	})
	require.NoError(t, err)

	require.NotNil(t, rf.From)
	require.NotNil(t, rf.Until)
	assert.True(t, rf.From.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, ict)))
	assert.True(t, rf.Until.Equal(time.Date(2024, 3, 2, 0, 0, 0, 0, ict)))
}

func TestResolveFilter_Rejects(t *testing.T) {
	svc := &Service{loc: ict}

	tests := []struct {
		name      string
		filter    ListFilter
		wantField string
	}{
		{name: "unknown sort field", filter: ListFilter{SortBy: "id"}, wantField: "sortBy"},
		{name: "unknown sort order", filter: ListFilter{SortOrder: "sideways"}, wantField: "sortOrder"},
		{name: "unknown status", filter: ListFilter{Status: "settled"}, wantField: "status"},
		{name: "inverted range", filter: ListFilter{FromDate: date(2024, 3, 2), ToDate: date(2024, 3, 1)}, wantField: "fromDate"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.resolveFilter(tc.filter)
			require.ErrorIs(t, err, domain.ErrValidation)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tc.wantField, verr.Fields[0].Field)
		})
	}
}

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name       string
		in         CreateInput
		wantErr    error
		wantStatus domain.PaymentStatus
	}{
		{
			name:       "defaults to completed",
			in:         CreateInput{PaymentMethod: "cash", Amount: decimal.NewFromInt(100)},
			wantStatus: domain.PaymentStatusCompleted,
		},
		{
			name:       "pending allowed",
			in:         CreateInput{PaymentMethod: "cash", Status: domain.PaymentStatusPending, InvoiceIDs: []int64{1}},
			wantStatus: domain.PaymentStatusPending,
		},
		{
			name:    "refunded not allowed on create",
			in:      CreateInput{PaymentMethod: "cash", Status: domain.PaymentStatusRefunded, Amount: decimal.NewFromInt(1)},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "method required",
			in:      CreateInput{Amount: decimal.NewFromInt(100)},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "duplicate invoice",
			in:      CreateInput{PaymentMethod: "cash", InvoiceIDs: []int64{4, 4}},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "non-positive invoice id",
			in:      CreateInput{PaymentMethod: "cash", InvoiceIDs: []int64{0}},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "zero amount without invoices",
			in:      CreateInput{PaymentMethod: "cash"},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative amount without invoices",
			in:      CreateInput{PaymentMethod: "cash", Amount: decimal.NewFromInt(-5)},
			wantErr: domain.ErrInvalidAmount,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			err := validateCreate(&in)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, in.Status)
		})
	}
}
