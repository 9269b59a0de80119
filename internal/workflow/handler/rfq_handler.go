package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/oakline/procure/internal/workflow/service"
)

// RFQHandler 询价/报价处理器
type RFQHandler struct {
	svc *service.RFQService
}

func NewRFQHandler(svc *service.RFQService) *RFQHandler {
	return &RFQHandler{svc: svc}
}

// OpenRFQ 发起询价
// POST /api/v1/purchase-requests/:id/rfq
func (h *RFQHandler) OpenRFQ(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&req)

	rfq, err := h.svc.OpenRFQ(c.Request.Context(), GetUserID(c), c.Param("id"), req.Notes)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, rfq)
}

// GetRFQ 查询PR进行中的询价单及报价
// GET /api/v1/purchase-requests/:id/rfq
func (h *RFQHandler) GetRFQ(c *gin.Context) {
	rfq, quotations, err := h.svc.GetRFQForPR(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"rfq": rfq, "quotations": quotations})
}

// AddQuotation 录入供应商报价
// POST /api/v1/rfqs/:id/quotations
func (h *RFQHandler) AddQuotation(c *gin.Context) {
	var req service.QuotationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	q, err := h.svc.AddQuotation(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, q)
}

// SetQuotationStatus 标记报价有效/作废
// PUT /api/v1/quotations/:id/status
func (h *RFQHandler) SetQuotationStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	q, err := h.svc.SetQuotationStatus(c.Request.Context(), GetUserID(c), c.Param("id"), req.Status)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, q)
}
