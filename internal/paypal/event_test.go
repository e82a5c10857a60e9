package paypal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryKey(t *testing.T) {
	webhook := &Event{Source: SourceWebhook, EventID: "WH-1", ProviderTxnID: "S1"}
	assert.Equal(t, "WH-1", webhook.DeliveryKey())

	ipn := &Event{Source: SourceIPN, ProviderTxnID: "61E67681CH3238416", PaymentStatus: "Completed"}
	assert.Equal(t, "61E67681CH3238416:Completed", ipn.DeliveryKey())

	assert.True(t, AccountIDs{}.Empty())
	assert.True(t, (&Event{Kind: KindLegacyRefund}).IsRefund())
}
