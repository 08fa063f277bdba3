package models

import "github.com/shopspring/decimal"

// NotificationType тип уведомления кассы водителя.
type NotificationType string

const (
	NotificationRequest   NotificationType = "payment_request"
	NotificationCompleted NotificationType = "payment_completed"
	NotificationFailed    NotificationType = "payment_failed"
)

// PaymentNotification уведомление об оплате проезда.
type PaymentNotification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	Amount        decimal.Decimal  `json:"amount"`
	CardID        string           `json:"card_id,omitempty"`
	PassengerName string           `json:"passenger_name,omitempty"`
	Timestamp     string           `json:"timestamp"`
}
