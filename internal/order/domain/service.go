package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

// Trigger names what caused a lifecycle transition.
type Trigger string

const (
	TriggerCheckout    Trigger = "checkout"
	TriggerWebhook     Trigger = "webhook"
	TriggerReconcile   Trigger = "reconcile"
	TriggerSweep       Trigger = "sweep"
	TriggerExpiry      Trigger = "expiry"
	TriggerAdminCancel Trigger = "admin_cancel"
	TriggerAdminRefund Trigger = "admin_refund"
)

type Service interface {
	CreatePending(ctx context.Context, req CreatePendingRequest) (*Order, error)
	AttachSession(ctx context.Context, orderID snowflake.ID, sessionID string) error

	MarkPaid(ctx context.Context, req MarkPaidRequest) (*Order, error)
	MarkFailed(ctx context.Context, req MarkFailedRequest) (*Order, error)
	ExpireIfStale(ctx context.Context, orderNumber string) (bool, error)
	Reconcile(ctx context.Context, orderNumber string, trigger Trigger) (*Order, error)
	GetPublicStatus(ctx context.Context, orderNumber string) (*PublicOrder, error)
	SweepPending(ctx context.Context, req SweepRequest) (SweepResult, error)

	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id string) (*AdminOrder, error)
	Cancel(ctx context.Context, req CancelRequest) (*AdminOrder, error)
	Refund(ctx context.Context, req RefundRequest) (*AdminOrder, error)
}

type PendingItem struct {
	ProductID      snowflake.ID
	ProductName    string
	Quantity       int64
	UnitPriceCents int64
}

type CreatePendingRequest struct {
	Items         []PendingItem
	CustomerEmail *string
	CustomerPhone *string
}

type MarkPaidRequest struct {
	OrderNumber string
	SessionID   string
	// ExternalID identifies the payment at the gateway: the payment intent
	// when present, else the session id.
	ExternalID string
	Trigger    Trigger
}

type MarkFailedRequest struct {
	OrderNumber string
	SessionID   string
	ExternalID  string
	Trigger     Trigger
}

type SweepRequest struct {
	MinAge time.Duration
	Limit  int
}

type SweepResult struct {
	Scanned int
	Paid    int
	Failed  int
	Pending int
	Errors  int
}

type PublicOrder struct {
	OrderNumber   string    `json:"orderNumber"`
	Status        string    `json:"status"`
	SubtotalCents int64     `json:"subtotalCents"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type ListResponse struct {
	Items []AdminOrder `json:"items"`
	pagination.PageInfo
}

type CancelRequest struct {
	OrderID string
}

type RefundRequest struct {
	OrderID string
	// AmountCents nil means a full refund.
	AmountCents *int64
}

type AdminOrderItem struct {
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

type AdminPayment struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ExternalID  string    `json:"externalId"`
	Status      string    `json:"status"`
	AmountCents int64     `json:"amountCents"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AdminOrder struct {
	ID                string           `json:"id"`
	OrderNumber       string           `json:"orderNumber"`
	Status            string           `json:"status"`
	SubtotalCents     int64            `json:"subtotalCents"`
	Currency          string           `json:"currency"`
	CustomerEmail     *string          `json:"customerEmail"`
	CustomerPhone     *string          `json:"customerPhone"`
	Items             []AdminOrderItem `json:"items"`
	Payments          []AdminPayment   `json:"payments"`
	RefundAmountCents *int64           `json:"refundAmountCents"`
	RefundedAt        *time.Time       `json:"refundedAt"`
	CancelledAt       *time.Time       `json:"cancelledAt"`
	CreatedAt         time.Time        `json:"createdAt"`
}
