package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string `form:"action"`
	TargetType string `form:"targetType"`
	TargetID   string `form:"targetId"`
}

type ListAuditLogResponse struct {
	AuditLogs []AuditLog `json:"auditLogs"`
	pagination.PageInfo
}

// Service writes audit entries. Actor and client details not passed
// explicitly are taken from the request context.
type Service interface {
	AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var ErrInvalidAction = errors.New("invalid_action")
