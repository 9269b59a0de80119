package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/oakline/procure/internal/workflow/service"
)

// PRHandler 采购申请处理器
type PRHandler struct {
	svc *service.PRService
}

func NewPRHandler(svc *service.PRService) *PRHandler {
	return &PRHandler{svc: svc}
}

// ListPRs 采购申请列表
// GET /api/v1/purchase-requests?status=xxx&department_code=xxx&requestor_id=xxx&search=xxx
func (h *PRHandler) ListPRs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"status":          c.Query("status"),
		"department_code": c.Query("department_code"),
		"requestor_id":    c.Query("requestor_id"),
		"search":          c.Query("search"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		RespondError(c, err)
		return
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// ListPending 我的待办PR
// GET /api/v1/purchase-requests/pending
func (h *PRHandler) ListPending(c *gin.Context) {
	items, err := h.svc.PendingFor(c.Request.Context(), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, items)
}

// GetPR 采购申请详情
// GET /api/v1/purchase-requests/:id
func (h *PRHandler) GetPR(c *gin.Context) {
	pr, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pr)
}

// GetPRDetail 采购申请聚合详情（审批轨迹、分派、选标、审计）
// GET /api/v1/purchase-requests/:id/detail
func (h *PRHandler) GetPRDetail(c *gin.Context) {
	detail, err := h.svc.GetDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, detail)
}

// CreatePR 创建采购申请（草稿）
// POST /api/v1/purchase-requests
func (h *PRHandler) CreatePR(c *gin.Context) {
	var req service.CreatePRReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.svc.Create(c.Request.Context(), GetUserID(c), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, pr)
}

// UpdatePR 编辑草稿/待补充信息的采购申请
// PUT /api/v1/purchase-requests/:id
func (h *PRHandler) UpdatePR(c *gin.Context) {
	var req service.CreatePRReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	pr, err := h.svc.UpdateDraft(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pr)
}

// DeletePR 删除草稿
// DELETE /api/v1/purchase-requests/:id
func (h *PRHandler) DeletePR(c *gin.Context) {
	if err := h.svc.DeleteDraft(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// SubmitPR 提交送审
// POST /api/v1/purchase-requests/:id/submit
func (h *PRHandler) SubmitPR(c *gin.Context) {
	pr, err := h.svc.Submit(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pr)
}

// ResubmitPR 重新提交（可携带修订行项）
// POST /api/v1/purchase-requests/:id/resubmit
func (h *PRHandler) ResubmitPR(c *gin.Context) {
	var req *service.CreatePRReq
	if c.Request.ContentLength > 0 {
		req = &service.CreatePRReq{}
		if err := c.ShouldBindJSON(req); err != nil {
			BadRequest(c, "参数错误: "+err.Error())
			return
		}
	}

	pr, err := h.svc.Resubmit(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pr)
}

// CancelPR 撤销采购申请
// POST /api/v1/purchase-requests/:id/cancel
func (h *PRHandler) CancelPR(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	pr, err := h.svc.Cancel(c.Request.Context(), GetUserID(c), c.Param("id"), req.Reason)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pr)
}

// MarkPaymentDone 财务确认付款
// POST /api/v1/purchase-requests/:id/payment-done
func (h *PRHandler) MarkPaymentDone(c *gin.Context) {
	pr, err := h.svc.MarkPaymentDone(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pr)
}
