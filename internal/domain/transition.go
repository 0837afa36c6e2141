package domain

import "fmt"

// Authority is the strength of the party asking for a status change.
type Authority int

const (
	AuthorityUser Authority = iota
	AuthorityGateway
	AuthorityOverride
)

func (a Authority) String() string {
	switch a {
	case AuthorityUser:
		return "user"
	case AuthorityGateway:
		return "gateway"
	case AuthorityOverride:
		return "override"
	}
	return fmt.Sprintf("authority(%d)", int(a))
}

type transition struct {
	from, to PaymentStatus
}

// transitions lists the minimum authority for each allowed change. Anything
// missing from the table needs AuthorityOverride.
var transitions = map[transition]Authority{
	{PaymentStatusPending, PaymentStatusPending}:     AuthorityUser,
	{PaymentStatusPending, PaymentStatusCompleted}:   AuthorityUser,
	{PaymentStatusPending, PaymentStatusFailed}:      AuthorityGateway,
	{PaymentStatusCompleted, PaymentStatusCompleted}: AuthorityGateway,
}

// CheckTransition reports whether a holder of the given authority may move a
// payment from one status to another.
func CheckTransition(from, to PaymentStatus, by Authority) error {
	if !to.IsValid() {
		return fmt.Errorf("CheckTransition: %q: %w", to, ErrInvalidStatus)
	}
	if by >= AuthorityOverride {
		return nil
	}
	need, ok := transitions[transition{from, to}]
	if ok && by >= need {
		return nil
	}
	if from == PaymentStatusCompleted {
		return fmt.Errorf("CheckTransition: %w", ErrPaymentCompleted)
	}
	return fmt.Errorf("CheckTransition: %s -> %s by %s: %w", from, to, by, ErrTransitionNotAllowed)
}

// AuthorityFor resolves the authority of an update. The gateway keeps its
// exemption when it is the acting party or when it was the last writer of the
// record.
func AuthorityFor(actor string, existing *Payment, override bool) Authority {
	switch {
	case override:
		return AuthorityOverride
	case actor == GatewayActor, existing != nil && existing.UpdatedBy == GatewayActor:
		return AuthorityGateway
	default:
		return AuthorityUser
	}
}
