package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/service"
)

// ApprovalHandler 审批动作处理器
type ApprovalHandler struct {
	svc *service.ApprovalService
}

func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{svc: svc}
}

type decisionReq struct {
	Comment string `json:"comment"`
}

func (h *ApprovalHandler) decide(c *gin.Context, fn func(ctx context.Context, approverID, prID, comment string) (*entity.PurchaseRequest, error)) {
	var req decisionReq
	_ = c.ShouldBindJSON(&req)

	pr, err := fn(c.Request.Context(), GetUserID(c), c.Param("id"), req.Comment)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pr)
}

// ManagerApprove 一级审批通过
// POST /api/v1/purchase-requests/:id/manager-approve
func (h *ApprovalHandler) ManagerApprove(c *gin.Context) {
	h.decide(c, h.svc.ManagerApprove)
}

// ManagerReject 一级审批拒绝
// POST /api/v1/purchase-requests/:id/manager-reject
func (h *ApprovalHandler) ManagerReject(c *gin.Context) {
	h.decide(c, h.svc.ManagerReject)
}

// ManagerReturn 一级审批退回
// POST /api/v1/purchase-requests/:id/manager-return
func (h *ApprovalHandler) ManagerReturn(c *gin.Context) {
	h.decide(c, h.svc.ManagerReturn)
}

// RequestInfo 要求补充信息
// POST /api/v1/purchase-requests/:id/request-info
func (h *ApprovalHandler) RequestInfo(c *gin.Context) {
	h.decide(c, h.svc.RequestMoreInfo)
}

// BranchManagerApprove 二级审批通过
// POST /api/v1/purchase-requests/:id/branch-approve
func (h *ApprovalHandler) BranchManagerApprove(c *gin.Context) {
	h.decide(c, h.svc.BranchManagerApprove)
}

// BranchManagerReject 二级审批拒绝
// POST /api/v1/purchase-requests/:id/branch-reject
func (h *ApprovalHandler) BranchManagerReject(c *gin.Context) {
	h.decide(c, h.svc.BranchManagerReject)
}

// BranchManagerReturn 二级审批退回
// POST /api/v1/purchase-requests/:id/branch-return
func (h *ApprovalHandler) BranchManagerReturn(c *gin.Context) {
	h.decide(c, h.svc.BranchManagerReturn)
}
