package model

import (
	"encoding/json"
	"time"
)

const (
	EventTypeSaleCompleted = "PAYMENT.SALE.COMPLETED"
	EventTypeSaleRefunded  = "PAYMENT.SALE.REFUNDED"
)

// PayPalWebhookEvent is the envelope of every webhook notification. Resource
// is decoded a second time once EventType is known.
type PayPalWebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	CreateTime   string          `json:"create_time"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type Amount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type Money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Sale struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	Amount     Amount    `json:"amount"`
	CreateTime time.Time `json:"create_time"`
	Custom     string    `json:"custom"`
}

type SaleRefund struct {
	ID                  string    `json:"id"`
	SaleID              string    `json:"sale_id"`
	State               string    `json:"state"`
	Amount              Amount    `json:"amount"`
	TotalRefundedAmount *Money    `json:"total_refunded_amount"`
	CreateTime          time.Time `json:"create_time"`
	Custom              string    `json:"custom"`
}

// IpnTransaction holds the raw legacy IPN fields the reconciler reads.
type IpnTransaction struct {
	TxnID         string
	TxnType       string
	ParentTxnID   string
	PaymentStatus string
	PaymentType   string
	ReceiverID    string
	McCurrency    string
	McGross       string
	PaymentDate   string
	Custom        string
}

const (
	IpnTxnTypeWebAccept = "web_accept"
	IpnTxnTypeMerchPmt  = "merch_pmt"

	IpnStatusCompleted = "Completed"
	IpnStatusRefunded  = "Refunded"

	IpnPaymentTypeECheck = "echeck"
)
