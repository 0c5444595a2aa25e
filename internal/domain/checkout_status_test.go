package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to CheckoutState
		want     bool
	}{
		{CheckoutSubmitted, CheckoutSucceeded, true},
		{CheckoutSubmitted, CheckoutFailed, true},
		{CheckoutSubmitted, CheckoutPendingThreeDs, true},
		{CheckoutPendingThreeDs, CheckoutSucceeded, true},
		{CheckoutPendingThreeDs, CheckoutFailed, true},
		{CheckoutPendingHosted, CheckoutSucceeded, true},
		{CheckoutPendingThreeDs, CheckoutPendingHosted, false},
		{CheckoutSucceeded, CheckoutFailed, false},
		{CheckoutFailed, CheckoutSucceeded, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, CheckoutSucceeded.IsTerminal())
	assert.True(t, CheckoutFailed.IsTerminal())
	assert.False(t, CheckoutPendingThreeDs.IsTerminal())
	assert.False(t, CheckoutSubmitted.IsTerminal())
}

func TestPaymentFlow(t *testing.T) {
	f, err := ParsePaymentFlow("wallet_quick")
	assert.NoError(t, err)
	assert.Equal(t, CredentialsQuickWallet, f.CredentialSet())
	assert.True(t, f.IsHosted())
	assert.False(t, f.NeedsCard())

	assert.Equal(t, CredentialsDefault, FlowWallet.CredentialSet())
	assert.True(t, FlowThreeDS.NeedsCard())

	_, err = ParsePaymentFlow("bitcoin")
	assert.Error(t, err)
}
