package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

func (s *Server) GetOrderStatus(c *gin.Context) {
	orderNumber := strings.TrimSpace(c.Param("orderNumber"))
	c.Set("order_number", orderNumber)

	resp, err := s.orderSvc.GetPublicStatus(c.Request.Context(), orderNumber)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type listOrdersQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,max=16"`
}

func (s *Server) ListOrders(c *gin.Context) {
	var query listOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListRequest{
		Pagination: pagination.Pagination{
			Page:     query.Page,
			PageSize: query.PageSize,
		},
		Status: strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrder(c *gin.Context) {
	resp, err := s.orderSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("order_number", resp.OrderNumber)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelOrder(c *gin.Context) {
	resp, err := s.orderSvc.Cancel(c.Request.Context(), orderdomain.CancelRequest{
		OrderID: c.Param("id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("order_number", resp.OrderNumber)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type refundOrderRequest struct {
	// Amount is in minor units; omitted refunds the full subtotal.
	Amount *int64 `json:"amount"`
}

func (s *Server) RefundOrder(c *gin.Context) {
	var req refundOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be a whole number of cents"))
		return
	}

	resp, err := s.orderSvc.Refund(c.Request.Context(), orderdomain.RefundRequest{
		OrderID:     c.Param("id"),
		AmountCents: req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("order_number", resp.OrderNumber)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// bindError keeps validator failures for field reporting and collapses
// decoding failures into a generic invalid request.
func bindError(err error) error {
	if fields := bindingFields(err); fields != nil {
		return err
	}
	return invalidRequestError()
}
