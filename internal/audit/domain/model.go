package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem  ActorType = "system"
	ActorTypeAdmin   ActorType = "admin"
	ActorTypeGateway ActorType = "gateway"
)

// AuditLog records one admin action or notable lifecycle anomaly.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	ActorType  string            `json:"actorType" gorm:"type:varchar(32);not null"`
	ActorID    *string           `json:"actorId,omitempty" gorm:"type:varchar(255)"`
	Action     string            `json:"action" gorm:"type:varchar(64);not null;index"`
	TargetType string            `json:"targetType" gorm:"type:varchar(32);not null"`
	TargetID   *string           `json:"targetId,omitempty" gorm:"type:varchar(255);index"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress  *string           `json:"ipAddress,omitempty" gorm:"type:varchar(64)"`
	UserAgent  *string           `json:"userAgent,omitempty" gorm:"type:text"`
	CreatedAt  time.Time         `json:"createdAt" gorm:"not null;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }

const (
	ActionOrderCancelled       = "order.cancelled"
	ActionOrderRefunded        = "order.refunded"
	ActionPaymentAfterTerminal = "order.payment_after_terminal"
	ActionOrderExpired         = "order.expired"
)

const TargetTypeOrder = "order"
