package models

import "time"

// CurrencyID is the only currency this store sells in.
const CurrencyID = "BRL"

// Payer carries the optional buyer name fields forwarded to the gateway.
type Payer struct {
	Name    string `json:"name" gorm:"column:name;type:varchar(100)"`
	Surname string `json:"surname" gorm:"column:surname;type:varchar(100)"`
}

// OrderItem is a single line item of an order, persisted alongside it.
type OrderItem struct {
	ID          uint    `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID     string  `json:"-" gorm:"index;type:varchar(36)"`
	ItemID      string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	PictureURL  string  `json:"picture_url"`
	CategoryID  string  `json:"category_id"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id"`
}

// Order is the persistent record correlating a caller's external reference
// with the gateway-side preference and, once a webhook arrives, the payment.
type Order struct {
	ID                string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ExternalReference string      `json:"external_reference" gorm:"uniqueIndex;type:varchar(255)"`
	Items             []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
	Payer             Payer       `json:"payer" gorm:"embedded;embeddedPrefix:payer_"`
	PreferenceID      string      `json:"preference_id" gorm:"index;type:varchar(255)"`
	PaymentID         string      `json:"payment_id"`
	Status            string      `json:"status"` // e.g. "approved", "pending", "rejected"
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// CreatePreferenceRequest is the body of POST /order/create_preference.
type CreatePreferenceRequest struct {
	ExternalReference string        `json:"external_reference" validate:"required"`
	Items             []ItemRequest `json:"items" validate:"required,min=1,dive"`
	Payer             Payer         `json:"payer"`
}

// ItemRequest is a submitted line item. Quantity and unit price must be
// positive; malformed values are rejected instead of coerced.
type ItemRequest struct {
	ID          string  `json:"id"`
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	PictureURL  string  `json:"picture_url"`
	CategoryID  string  `json:"category_id"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"required,gt=0"`
}
