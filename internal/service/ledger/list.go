package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/josh-kwaku/clinic-settlement/internal/domain"
	"github.com/josh-kwaku/clinic-settlement/internal/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListFilter mirrors the query parameters of the payment listing. FromDate and
// ToDate are calendar days and both ends are inclusive.
type ListFilter struct {
	Page          int
	PageSize      int
	SearchTerm    string
	PaymentMethod string
	FromDate      *time.Time
	ToDate        *time.Time
	SortBy        string
	SortOrder     string
	Status        string
}

var sortAliases = map[string]domain.PaymentSortField{
	"payer":          domain.PaymentSortPayer,
	"payername":      domain.PaymentSortPayer,
	"payer_name":     domain.PaymentSortPayer,
	"amount":         domain.PaymentSortAmount,
	"method":         domain.PaymentSortMethod,
	"paymentmethod":  domain.PaymentSortMethod,
	"payment_method": domain.PaymentSortMethod,
	"date":           domain.PaymentSortDate,
	"paymentdate":    domain.PaymentSortDate,
	"payment_date":   domain.PaymentSortDate,
}

func (s *Service) List(ctx context.Context, f ListFilter) (domain.Page[domain.Payment], error) {
	rf, err := s.resolveFilter(f)
	if err != nil {
		return domain.Page[domain.Payment]{}, fmt.Errorf("List: %w", err)
	}

	items, total, err := s.payments.List(ctx, rf)
	if err != nil {
		return domain.Page[domain.Payment]{}, fmt.Errorf("List: %w", err)
	}

	page := rf.Offset/rf.Limit + 1
	return domain.NewPage(items, page, rf.Limit, total), nil
}

// resolveFilter applies defaults and checks the filter, reporting every bad
// field at once.
func (s *Service) resolveFilter(f ListFilter) (repository.PaymentFilter, error) {
	verr := &domain.ValidationError{}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}

	sortBy := domain.PaymentSortDate
	if f.SortBy != "" {
		field, ok := sortAliases[strings.ToLower(f.SortBy)]
		if !ok {
			verr.Add("sortBy", "must be one of payer, amount, method, date")
		}
		sortBy = field
	}

	desc := true
	switch strings.ToLower(f.SortOrder) {
	case "", "desc":
	case "asc":
		desc = false
	default:
		verr.Add("sortOrder", "must be asc or desc")
	}

	status := domain.PaymentStatus(strings.ToLower(f.Status))
	if status != "" && !status.IsValid() {
		verr.Add("status", "must be one of pending, completed, failed, refunded")
	}

	rf := repository.PaymentFilter{
		Search: strings.TrimSpace(f.SearchTerm),
		Method: strings.TrimSpace(f.PaymentMethod),
		Status: status,
		SortBy: sortBy,
		Desc:   desc,
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if f.FromDate != nil {
		from := s.startOfDay(*f.FromDate)
		rf.From = &from
	}
	if f.ToDate != nil {
		until := s.startOfDay(*f.ToDate).AddDate(0, 0, 1)
		rf.Until = &until
	}
	if rf.From != nil && rf.Until != nil && !rf.From.Before(*rf.Until) {
		verr.Add("fromDate", "must not be after toDate")
	}

	if err := verr.OrNil(); err != nil {
		return repository.PaymentFilter{}, err
	}
	return rf, nil
}

// startOfDay reads the calendar day of t and returns its first instant in the
// clinic's time zone.
func (s *Service) startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}
