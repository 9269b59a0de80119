package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/oakline/procure/internal/workflow/service"
)

// AssignmentHandler 分派处理器
type AssignmentHandler struct {
	svc *service.AssignmentService
}

func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{svc: svc}
}

// Assign 分派PR给采购员
// POST /api/v1/purchase-requests/:id/assign
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req service.AssignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	assignment, err := h.svc.Assign(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, assignment)
}

// ListAssignments 查询PR的分派
// GET /api/v1/purchase-requests/:id/assignments
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	items, err := h.svc.ListByPR(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, items)
}
