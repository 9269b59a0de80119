package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/oakline/procure/internal/middleware"
	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/repository"
	"github.com/oakline/procure/internal/workflow/service"
	"github.com/oakline/procure/internal/workflow/sse"
	"github.com/oakline/procure/internal/workflow/testutil"
	"go.uber.org/zap"
)

func setupWorkflowRouter(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	mgrID := "e2e-mgr"
	testutil.SeedUser(t, db, "e2e-mgr", entity.RoleManager, "BJ", "IT", nil)
	testutil.SeedUser(t, db, "e2e-req", entity.RoleRequestor, "BJ", "IT", &mgrID)
	testutil.SeedUser(t, db, "e2e-bm", entity.RoleBranchManager, "BJ", "", nil)
	testutil.SeedUser(t, db, "e2e-bl", entity.RoleBuyerLeader, "BJ", "", nil)
	testutil.SeedUser(t, db, "e2e-buyer", entity.RoleBuyer, "BJ", "", nil)
	testutil.SeedUser(t, db, "e2e-fin", entity.RoleFinance, "BJ", "", nil)
	testutil.SeedBranchRule(t, db, "BJ", true)

	hub := sse.NewHub(logger)
	repos := repository.NewRepositories(db, logger)
	svcs := service.NewServices(db, repos, repos.Directory, nil, hub, logger)
	h := NewHandlers(svcs, hub)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")

	prs := api.Group("/purchase-requests")
	{
		prs.GET("/:id", h.PR.GetPR)
		prs.GET("/:id/detail", h.PR.GetPRDetail)
		prs.POST("", middleware.RequireRole("requestor"), h.PR.CreatePR)
		prs.POST("/:id/submit", middleware.RequireRole("requestor"), h.PR.SubmitPR)
		prs.POST("/:id/manager-approve", middleware.RequireRole("manager"), h.Approval.ManagerApprove)
		prs.POST("/:id/branch-approve", middleware.RequireRole("branch_manager"), h.Approval.BranchManagerApprove)
		prs.POST("/:id/assign", middleware.RequireRole("buyer_leader"), h.Assignment.Assign)
		prs.POST("/:id/rfq", middleware.RequireRole("buyer"), h.RFQ.OpenRFQ)
		prs.GET("/:id/rfq", h.RFQ.GetRFQ)
		prs.POST("/:id/select-supplier", middleware.RequireRole("buyer_leader"), h.Budget.SelectSupplier)
		prs.POST("/:id/payment-done", middleware.RequireRole("finance"), h.PR.MarkPaymentDone)
	}
	rfqs := api.Group("/rfqs")
	{
		rfqs.POST("/:id/quotations", middleware.RequireRole("buyer"), h.RFQ.AddQuotation)
	}
	exceptions := api.Group("/budget-exceptions")
	{
		exceptions.GET("/:id", h.Budget.GetException)
		exceptions.POST("/:id/approve", middleware.RequireRole("branch_manager"), h.Budget.ApproveException)
	}
	notifications := api.Group("/notifications")
	{
		notifications.GET("", h.Notification.List)
	}

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func token(userID, role string) string {
	return testutil.GenerateTestToken(userID, userID, []string{role})
}

func dataOf(t *testing.T, r *gin.Engine, method, path string, body interface{}, tok string, wantCode int) map[string]interface{} {
	t.Helper()
	w := testutil.DoRequest(r, method, path, body, tok)
	if w.Code != wantCode {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, path, wantCode, w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data, _ := resp["data"].(map[string]interface{})
	return data
}

// TestWorkflowHappyPath 全流程：草稿→两级审批→分派→询价→报价→选标→付款
func TestWorkflowHappyPath(t *testing.T) {
	env := setupWorkflowRouter(t)
	r := env.Router

	reqTok := token("e2e-req", "requestor")
	mgrTok := token("e2e-mgr", "manager")
	bmTok := token("e2e-bm", "branch_manager")
	blTok := token("e2e-bl", "buyer_leader")
	buyerTok := token("e2e-buyer", "buyer")
	finTok := token("e2e-fin", "finance")

	// 创建草稿
	data := dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests", map[string]interface{}{
		"title":        "办公设备采购",
		"total_amount": 100,
		"items": []map[string]interface{}{
			{"description": "显示器", "quantity": 2, "unit_price": 40},
			{"description": "键盘", "quantity": 2, "unit_price": 10},
		},
	}, reqTok, http.StatusCreated)
	prID := data["id"].(string)
	if data["status"] != "draft" {
		t.Fatalf("expected draft, got %v", data["status"])
	}
	if data["pr_number"] == "" {
		t.Fatal("expected allocated PR number")
	}

	// 提交与两级审批
	data = dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/submit", nil, reqTok, http.StatusOK)
	if data["status"] != "manager_pending" {
		t.Fatalf("expected manager_pending, got %v", data["status"])
	}
	data = dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/manager-approve",
		map[string]interface{}{"comment": "同意"}, mgrTok, http.StatusOK)
	if data["status"] != "branch_manager_pending" {
		t.Fatalf("expected branch_manager_pending, got %v", data["status"])
	}
	data = dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/branch-approve",
		map[string]interface{}{"comment": "同意"}, bmTok, http.StatusOK)
	if data["status"] != "buyer_leader_pending" {
		t.Fatalf("expected buyer_leader_pending, got %v", data["status"])
	}

	// 整单分派
	dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/assign",
		map[string]interface{}{"buyer_id": "e2e-buyer", "scope": "full"}, blTok, http.StatusCreated)
	data = dataOf(t, r, http.MethodGet, "/api/v1/purchase-requests/"+prID, nil, reqTok, http.StatusOK)
	if data["status"] != "assigned_to_buyer" {
		t.Fatalf("expected assigned_to_buyer, got %v", data["status"])
	}

	// 发起询价并录入两份报价
	data = dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/rfq", nil, buyerTok, http.StatusCreated)
	rfqID := data["id"].(string)

	data = dataOf(t, r, http.MethodPost, "/api/v1/rfqs/"+rfqID+"/quotations", map[string]interface{}{
		"supplier_id":    "sup-1",
		"supplier_name":  "供应商一",
		"total_amount":   90,
		"lead_time_days": 15,
		"payment_terms":  "Net 30",
	}, buyerTok, http.StatusCreated)
	cheapQID := data["id"].(string)

	dataOf(t, r, http.MethodPost, "/api/v1/rfqs/"+rfqID+"/quotations", map[string]interface{}{
		"supplier_id":    "sup-2",
		"supplier_name":  "供应商二",
		"total_amount":   110,
		"lead_time_days": 20,
		"payment_terms":  "Net 60",
	}, buyerTok, http.StatusCreated)

	data = dataOf(t, r, http.MethodGet, "/api/v1/purchase-requests/"+prID, nil, reqTok, http.StatusOK)
	if data["status"] != "quotation_received" {
		t.Fatalf("expected quotation_received at 2 quotations, got %v", data["status"])
	}

	// 推荐分落在报价上
	data = dataOf(t, r, http.MethodGet, "/api/v1/purchase-requests/"+prID+"/rfq", nil, blTok, http.StatusOK)
	quotations := data["quotations"].([]interface{})
	if len(quotations) != 2 {
		t.Fatalf("expected 2 quotations, got %d", len(quotations))
	}
	recommended := 0
	for _, raw := range quotations {
		q := raw.(map[string]interface{})
		if q["is_recommended"] == true {
			recommended++
			if q["id"] != cheapQID {
				t.Errorf("cheaper quotation should be recommended")
			}
		}
	}
	if recommended != 1 {
		t.Fatalf("expected exactly one recommendation, got %d", recommended)
	}

	// 预算内选标
	data = dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/select-supplier",
		map[string]interface{}{"quotation_id": cheapQID, "reason": "价格最优"}, blTok, http.StatusOK)
	if data["status"] != "supplier_selected" {
		t.Fatalf("expected supplier_selected, got %v", data["status"])
	}

	// 财务付款
	data = dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/payment-done", nil, finTok, http.StatusOK)
	if data["status"] != "payment_done" {
		t.Fatalf("expected payment_done, got %v", data["status"])
	}

	// 聚合详情：审批轨迹2条、选标1条、审计非空
	data = dataOf(t, r, http.MethodGet, "/api/v1/purchase-requests/"+prID+"/detail", nil, reqTok, http.StatusOK)
	if got := len(data["approvals"].([]interface{})); got != 2 {
		t.Errorf("expected 2 approvals, got %d", got)
	}
	if got := len(data["selections"].([]interface{})); got != 1 {
		t.Errorf("expected 1 selection, got %d", got)
	}
	if got := len(data["audit_trail"].([]interface{})); got == 0 {
		t.Error("expected non-empty audit trail")
	}
}

// TestWorkflowOverBudgetPath 超预算选标走例外裁决分支
func TestWorkflowOverBudgetPath(t *testing.T) {
	env := setupWorkflowRouter(t)
	r := env.Router

	reqTok := token("e2e-req", "requestor")
	mgrTok := token("e2e-mgr", "manager")
	bmTok := token("e2e-bm", "branch_manager")
	blTok := token("e2e-bl", "buyer_leader")
	buyerTok := token("e2e-buyer", "buyer")

	data := dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests", map[string]interface{}{
		"title":        "服务器采购",
		"total_amount": 100,
		"items": []map[string]interface{}{
			{"description": "服务器", "quantity": 1, "unit_price": 100},
		},
	}, reqTok, http.StatusCreated)
	prID := data["id"].(string)

	dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/submit", nil, reqTok, http.StatusOK)
	dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/manager-approve", nil, mgrTok, http.StatusOK)
	dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/branch-approve", nil, bmTok, http.StatusOK)
	dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/assign",
		map[string]interface{}{"buyer_id": "e2e-buyer", "scope": "full"}, blTok, http.StatusCreated)
	data = dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/rfq", nil, buyerTok, http.StatusCreated)
	rfqID := data["id"].(string)

	data = dataOf(t, r, http.MethodPost, "/api/v1/rfqs/"+rfqID+"/quotations",
		map[string]interface{}{"supplier_id": "sup-1", "total_amount": 130}, buyerTok, http.StatusCreated)
	overQID := data["id"].(string)
	dataOf(t, r, http.MethodPost, "/api/v1/rfqs/"+rfqID+"/quotations",
		map[string]interface{}{"supplier_id": "sup-2", "total_amount": 140}, buyerTok, http.StatusCreated)

	// 缺超预算理由 → 400
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/select-supplier",
		map[string]interface{}{"quotation_id": overQID, "reason": "交期最短"}, blTok)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without over-budget reason, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["kind"] != "validation_error" {
		t.Errorf("expected validation_error kind, got %v", resp["data"])
	}

	// 带理由 → 例外单
	data = dataOf(t, r, http.MethodPost, "/api/v1/purchase-requests/"+prID+"/select-supplier",
		map[string]interface{}{
			"quotation_id":       overQID,
			"reason":             "交期最短",
			"over_budget_reason": "旺季涨价",
		}, blTok, http.StatusOK)
	if data["status"] != "budget_exception" {
		t.Fatalf("expected budget_exception, got %v", data["status"])
	}

	data = dataOf(t, r, http.MethodGet, "/api/v1/purchase-requests/"+prID+"/detail", nil, reqTok, http.StatusOK)
	exceptions := data["exceptions"].([]interface{})
	if len(exceptions) != 1 {
		t.Fatalf("expected 1 exception, got %d", len(exceptions))
	}
	ex := exceptions[0].(map[string]interface{})
	exID := ex["id"].(string)
	if ex["over_percent"].(float64) != 30.0 {
		t.Errorf("expected over_percent 30, got %v", ex["over_percent"])
	}

	// 分支经理裁决通过
	data = dataOf(t, r, http.MethodPost, "/api/v1/budget-exceptions/"+exID+"/approve",
		map[string]interface{}{"comment": "同意超预算采购"}, bmTok, http.StatusOK)
	if data["status"] != "approved" {
		t.Fatalf("expected approved exception, got %v", data["status"])
	}
	data = dataOf(t, r, http.MethodGet, "/api/v1/purchase-requests/"+prID, nil, reqTok, http.StatusOK)
	if data["status"] != "budget_approved" {
		t.Fatalf("expected budget_approved, got %v", data["status"])
	}
}

// TestRoleGuards 角色中间件拦截越权请求
func TestRoleGuards(t *testing.T) {
	env := setupWorkflowRouter(t)
	r := env.Router

	// 无token
	w := testutil.DoRequest(r, http.MethodPost, "/api/v1/purchase-requests", map[string]interface{}{
		"title": "未认证",
	}, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	// 经理不能创建PR
	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/purchase-requests", map[string]interface{}{
		"title": "越权创建",
		"items": []map[string]interface{}{{"description": "x", "quantity": 1, "unit_price": 1}},
	}, token("e2e-mgr", "manager"))
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for manager creating PR, got %d", w.Code)
	}

	// admin放行一切角色门
	w = testutil.DoRequest(r, http.MethodPost, "/api/v1/purchase-requests", map[string]interface{}{
		"title": "admin创建",
		"items": []map[string]interface{}{{"description": "x", "quantity": 1, "unit_price": 1}},
	}, token("e2e-admin", "admin"))
	// 角色门放行后落在业务校验上（admin用户不在目录里 → 404）
	if w.Code == http.StatusForbidden {
		t.Errorf("admin must pass role guards, got %d", w.Code)
	}
}
