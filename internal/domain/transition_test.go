package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    PaymentStatus
		to      PaymentStatus
		by      Authority
		wantErr error
	}{
		{name: "user edits pending", from: PaymentStatusPending, to: PaymentStatusPending, by: AuthorityUser},
		{name: "user completes pending", from: PaymentStatusPending, to: PaymentStatusCompleted, by: AuthorityUser},
		{name: "user cannot fail pending", from: PaymentStatusPending, to: PaymentStatusFailed, by: AuthorityUser, wantErr: ErrTransitionNotAllowed},
		{name: "gateway fails pending", from: PaymentStatusPending, to: PaymentStatusFailed, by: AuthorityGateway},
		{name: "user locked out of completed", from: PaymentStatusCompleted, to: PaymentStatusCompleted, by: AuthorityUser, wantErr: ErrPaymentCompleted},
		{name: "gateway reconfirms completed", from: PaymentStatusCompleted, to: PaymentStatusCompleted, by: AuthorityGateway},
		{name: "gateway cannot refund", from: PaymentStatusCompleted, to: PaymentStatusRefunded, by: AuthorityGateway, wantErr: ErrPaymentCompleted},
		{name: "override refunds", from: PaymentStatusCompleted, to: PaymentStatusRefunded, by: AuthorityOverride},
		{name: "override reopens completed", from: PaymentStatusCompleted, to: PaymentStatusPending, by: AuthorityOverride},
		{name: "failed is terminal for users", from: PaymentStatusFailed, to: PaymentStatusPending, by: AuthorityUser, wantErr: ErrTransitionNotAllowed},
		{name: "unknown target", from: PaymentStatusPending, to: "settled", by: AuthorityOverride, wantErr: ErrInvalidStatus},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.from, tc.to, tc.by)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCheckTransition_CompletedLockIsConflict(t *testing.T) {
	err := CheckTransition(PaymentStatusCompleted, PaymentStatusCompleted, AuthorityUser)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "cannot edit a completed payment")
}

func TestAuthorityFor(t *testing.T) {
	byGateway := &Payment{UpdatedBy: GatewayActor}
	byUser := &Payment{UpdatedBy: "user:42"}

	tests := []struct {
		name     string
		actor    string
		existing *Payment
		override bool
		want     Authority
	}{
		{name: "override wins", actor: "user:42", existing: byUser, override: true, want: AuthorityOverride},
		{name: "acting gateway", actor: GatewayActor, existing: byUser, want: AuthorityGateway},
		{name: "last written by gateway", actor: "user:7", existing: byGateway, want: AuthorityGateway},
		{name: "plain user", actor: "user:7", existing: byUser, want: AuthorityUser},
		{name: "no existing record", actor: "user:7", want: AuthorityUser},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AuthorityFor(tc.actor, tc.existing, tc.override))
		})
	}
}
