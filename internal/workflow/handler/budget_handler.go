package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/service"
)

// BudgetHandler 选标与超预算裁决处理器
type BudgetHandler struct {
	svc *service.BudgetService
}

func NewBudgetHandler(svc *service.BudgetService) *BudgetHandler {
	return &BudgetHandler{svc: svc}
}

// SelectSupplier 选标
// POST /api/v1/purchase-requests/:id/select-supplier
func (h *BudgetHandler) SelectSupplier(c *gin.Context) {
	var req service.SelectSupplierReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.svc.SelectSupplier(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pr)
}

// GetException 查询超预算例外单
// GET /api/v1/budget-exceptions/:id
func (h *BudgetHandler) GetException(c *gin.Context) {
	ex, err := h.svc.GetException(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, ex)
}

func (h *BudgetHandler) resolve(c *gin.Context, fn func(ctx context.Context, resolverID, exceptionID, comment string) (*entity.BudgetException, error)) {
	var req struct {
		Comment string `json:"comment"`
	}
	_ = c.ShouldBindJSON(&req)

	ex, err := fn(c.Request.Context(), GetUserID(c), c.Param("id"), req.Comment)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, ex)
}

// ApproveException 裁决通过
// POST /api/v1/budget-exceptions/:id/approve
func (h *BudgetHandler) ApproveException(c *gin.Context) {
	h.resolve(c, h.svc.ApproveException)
}

// RejectException 裁决拒绝
// POST /api/v1/budget-exceptions/:id/reject
func (h *BudgetHandler) RejectException(c *gin.Context) {
	h.resolve(c, h.svc.RejectException)
}

// RequestNegotiation 要求重新议价
// POST /api/v1/budget-exceptions/:id/request-negotiation
func (h *BudgetHandler) RequestNegotiation(c *gin.Context) {
	h.resolve(c, h.svc.RequestNegotiation)
}
