package domain

type CheckoutState string

const (
	CheckoutSubmitted      CheckoutState = "SUBMITTED"
	CheckoutPendingThreeDs CheckoutState = "PENDING_3DS"
	CheckoutPendingHosted  CheckoutState = "PENDING_HOSTED"
	CheckoutSucceeded      CheckoutState = "SUCCEEDED"
	CheckoutFailed         CheckoutState = "FAILED"
)

var validTransitions = map[CheckoutState][]CheckoutState{
	CheckoutSubmitted:      {CheckoutSucceeded, CheckoutFailed, CheckoutPendingThreeDs, CheckoutPendingHosted},
	CheckoutPendingThreeDs: {CheckoutSucceeded, CheckoutFailed},
	CheckoutPendingHosted:  {CheckoutSucceeded, CheckoutFailed},
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutSucceeded || s == CheckoutFailed
}

func (s CheckoutState) String() string {
	return string(s)
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
