package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPage(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		pageSize  int
		total     int
		wantPages int
		wantNext  bool
		wantPrev  bool
	}{
		{name: "last partial page", page: 3, pageSize: 10, total: 25, wantPages: 3, wantNext: false, wantPrev: true},
		{name: "first page", page: 1, pageSize: 10, total: 25, wantPages: 3, wantNext: true, wantPrev: false},
		{name: "exact multiple", page: 2, pageSize: 10, total: 20, wantPages: 2, wantNext: false, wantPrev: true},
		{name: "empty result", page: 1, pageSize: 10, total: 0, wantPages: 0, wantNext: false, wantPrev: false},
		{name: "past the end", page: 5, pageSize: 10, total: 25, wantPages: 3, wantNext: false, wantPrev: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPage[int](nil, tc.page, tc.pageSize, tc.total)
			assert.Equal(t, tc.wantPages, p.TotalPages)
			assert.Equal(t, tc.wantNext, p.HasNextPage)
			assert.Equal(t, tc.wantPrev, p.HasPreviousPage)
			assert.NotNil(t, p.Items)
		})
	}
}

func TestCheckCorrelation(t *testing.T) {
	assert.NoError(t, CheckCorrelation(42, 42))
	assert.ErrorIs(t, CheckCorrelation(42, 43), ErrCorrelationViolated)
	assert.ErrorIs(t, CheckCorrelation(0, 0), ErrConflict)
}
