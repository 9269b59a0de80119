package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/oakline/procure/internal/workflow/service"
	"github.com/oakline/procure/internal/workflow/sse"
	"github.com/oakline/procure/internal/workflow/wferr"
)

// Handlers 工作流处理器集合
type Handlers struct {
	PR           *PRHandler
	Approval     *ApprovalHandler
	Assignment   *AssignmentHandler
	RFQ          *RFQHandler
	Budget       *BudgetHandler
	Notification *NotificationHandler
	SSE          *SSEHandler
}

// NewHandlers 创建工作流处理器集合
func NewHandlers(svcs *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		PR:           NewPRHandler(svcs.PR),
		Approval:     NewApprovalHandler(svcs.Approval),
		Assignment:   NewAssignmentHandler(svcs.Assignment),
		RFQ:          NewRFQHandler(svcs.RFQ),
		Budget:       NewBudgetHandler(svcs.Budget),
		Notification: NewNotificationHandler(svcs.Notification),
		SSE:          NewSSEHandler(hub),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// 错误分类→响应码
var kindCodes = map[wferr.Kind]int{
	wferr.KindNotFound:          40400,
	wferr.KindForbidden:         40300,
	wferr.KindValidation:        40000,
	wferr.KindNoApprover:        42200,
	wferr.KindInvalidTransition: 40900,
	wferr.KindItemsAssigned:     40901,
	wferr.KindAlreadySelected:   40902,
	wferr.KindSequenceExhausted: 50300,
	wferr.KindInternal:          50000,
}

// RespondError 把工作流错误映射为结构化失败响应（分类+消息+关联ID）
func RespondError(c *gin.Context, err error) {
	kind := wferr.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		code = 50000
	}
	data := gin.H{"kind": string(kind)}
	if ids := wferr.IDsOf(err); len(ids) > 0 {
		data["ids"] = ids
	}
	statusCode := code / 100
	c.JSON(statusCode, Response{
		Code:    code,
		Message: err.Error(),
		Data:    data,
	})
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
