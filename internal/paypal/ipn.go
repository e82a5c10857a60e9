package paypal

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"paypal-billing/internal/model"
)

const ipnDateLayout = "15:04:05 Jan 2, 2006"

var ipnZones = map[string]*time.Location{
	"PST": time.FixedZone("PST", -8*60*60),
	"PDT": time.FixedZone("PDT", -7*60*60),
}

// ParseIPN decodes a form encoded IPN body. Only buy-now (web_accept),
// billing agreement (merch_pmt) and refund notifications are reconciled;
// everything else returns ErrEventIgnored.
func ParseIPN(body []byte, receivedAt time.Time) (*Event, error) {
	ipn, err := decodeIPN(body)
	if err != nil {
		return nil, err
	}

	if ipn.TxnType != model.IpnTxnTypeWebAccept && ipn.TxnType != model.IpnTxnTypeMerchPmt &&
		ipn.PaymentStatus != model.IpnStatusRefunded {
		return nil, fmt.Errorf("%w: ipn txn_type %q status %q", ErrEventIgnored, ipn.TxnType, ipn.PaymentStatus)
	}

	if ipn.TxnID == "" {
		return nil, fmt.Errorf("%w: ipn without txn_id", ErrMalformedPayload)
	}

	amount, err := parseAmount(ipn.McGross)
	if err != nil {
		return nil, err
	}

	kind := KindLegacyCredit
	if ipn.PaymentStatus == model.IpnStatusRefunded {
		kind = KindLegacyRefund
	}

	return &Event{
		Kind:                kind,
		Source:              SourceIPN,
		ProviderTxnID:       ipn.TxnID,
		ParentProviderTxnID: ipn.ParentTxnID,
		Amount:              amount,
		OccurredAt:          parseIPNDate(ipn.PaymentDate, receivedAt),
		Accounts:            ParseCustom(ipn.Custom),
		AccountCredit:       IsAccountCredit(ipn.Custom),
		PaymentStatus:       ipn.PaymentStatus,
		TransactionType:     ipn.TxnType,
		ReceiverID:          ipn.ReceiverID,
		Currency:            ipn.McCurrency,
		PaymentType:         ipn.PaymentType,
	}, nil
}

func decodeIPN(body []byte) (*model.IpnTransaction, error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: decode ipn form: %v", ErrMalformedPayload, err)
	}

	return &model.IpnTransaction{
		TxnID:         values.Get("txn_id"),
		TxnType:       values.Get("txn_type"),
		ParentTxnID:   values.Get("parent_txn_id"),
		PaymentStatus: values.Get("payment_status"),
		PaymentType:   values.Get("payment_type"),
		ReceiverID:    values.Get("receiver_id"),
		McCurrency:    values.Get("mc_currency"),
		McGross:       values.Get("mc_gross"),
		PaymentDate:   values.Get("payment_date"),
		Custom:        values.Get("custom"),
	}, nil
}

// parseIPNDate reads PayPal's "HH:MM:SS Mon DD, YYYY PST" format. PayPal only
// ever sends Pacific time; anything unparsable falls back to receivedAt.
func parseIPNDate(raw string, receivedAt time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, " ")
	if idx < 0 {
		return receivedAt.UTC()
	}

	loc, ok := ipnZones[raw[idx+1:]]
	if !ok {
		return receivedAt.UTC()
	}

	t, err := time.ParseInLocation(ipnDateLayout, raw[:idx], loc)
	if err != nil {
		return receivedAt.UTC()
	}
	return t.UTC()
}
