package service

import (
	"context"
	"testing"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/repository"
	"github.com/oakline/procure/internal/workflow/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 测试组织架构：申请人→直属上级→分支经理，采购侧主管+两名采购员+财务
const (
	uRequestor     = "u-requestor"
	uManager       = "u-manager"
	uBranchManager = "u-branch-mgr"
	uBuyerLeader   = "u-buyer-leader"
	uBuyerOne      = "u-buyer-1"
	uBuyerTwo      = "u-buyer-2"
	uFinance       = "u-finance"

	testBranch = "BJ"
	testDept   = "IT"
)

func setupWorkflowTest(t *testing.T) (*Services, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	mgrID := uManager
	testutil.SeedUser(t, db, uManager, entity.RoleManager, testBranch, testDept, nil)
	testutil.SeedUser(t, db, uRequestor, entity.RoleRequestor, testBranch, testDept, &mgrID)
	testutil.SeedUser(t, db, uBranchManager, entity.RoleBranchManager, testBranch, "", nil)
	testutil.SeedUser(t, db, uBuyerLeader, entity.RoleBuyerLeader, testBranch, "", nil)
	testutil.SeedUser(t, db, uBuyerOne, entity.RoleBuyer, testBranch, "", nil)
	testutil.SeedUser(t, db, uBuyerTwo, entity.RoleBuyer, testBranch, "", nil)
	testutil.SeedUser(t, db, uFinance, entity.RoleFinance, testBranch, "", nil)
	testutil.SeedBranchRule(t, db, testBranch, true)

	repos := repository.NewRepositories(db, logger)
	svcs := NewServices(db, repos, repos.Directory, nil, nil, logger)
	return svcs, db
}

// createApprovedPR 创建三行项PR并推进到待分派（两级审批通过）
func createApprovedPR(t *testing.T, svcs *Services, totalAmount float64) *entity.PurchaseRequest {
	t.Helper()
	ctx := context.Background()

	pr, err := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title:       "测试采购申请",
		TotalAmount: &totalAmount,
		Items: []PRItemInput{
			{Description: "物料A", Quantity: 2, UnitPrice: 10},
			{Description: "物料B", Quantity: 1, UnitPrice: 20},
			{Description: "物料C", Quantity: 5, UnitPrice: 4},
		},
	})
	if err != nil {
		t.Fatalf("create PR: %v", err)
	}

	if _, err := svcs.PR.Submit(ctx, uRequestor, pr.ID); err != nil {
		t.Fatalf("submit PR: %v", err)
	}
	if _, err := svcs.Approval.ManagerApprove(ctx, uManager, pr.ID, "同意"); err != nil {
		t.Fatalf("manager approve: %v", err)
	}
	if _, err := svcs.Approval.BranchManagerApprove(ctx, uBranchManager, pr.ID, "同意"); err != nil {
		t.Fatalf("branch manager approve: %v", err)
	}

	pr, err = svcs.PR.Get(ctx, pr.ID)
	if err != nil {
		t.Fatalf("reload PR: %v", err)
	}
	if pr.Status != entity.PRStatusBuyerLeaderPending {
		t.Fatalf("expected status %s, got %s", entity.PRStatusBuyerLeaderPending, pr.Status)
	}
	return pr
}

// itemIDs 按行号序取PR行项ID
func itemIDs(pr *entity.PurchaseRequest) []string {
	ids := make([]string, 0, len(pr.Items))
	for _, item := range pr.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// assignFullToBuyerOne 整单分派给采购员1并断言转入ASSIGNED_TO_BUYER
func assignFullToBuyerOne(t *testing.T, svcs *Services, prID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := svcs.Assignment.Assign(ctx, uBuyerLeader, prID, AssignReq{
		BuyerID: uBuyerOne,
		Scope:   entity.AssignScopeFull,
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	pr, err := svcs.PR.Get(ctx, prID)
	if err != nil {
		t.Fatalf("reload PR: %v", err)
	}
	if pr.Status != entity.PRStatusAssignedToBuyer {
		t.Fatalf("expected status %s, got %s", entity.PRStatusAssignedToBuyer, pr.Status)
	}
}

// prepareQuotationReceived 推进PR到报价齐备，返回两份报价（金额amount1、amount2）
func prepareQuotationReceived(t *testing.T, svcs *Services, totalAmount, amount1, amount2 float64) (*entity.PurchaseRequest, *entity.Quotation, *entity.Quotation) {
	t.Helper()
	ctx := context.Background()

	pr := createApprovedPR(t, svcs, totalAmount)
	assignFullToBuyerOne(t, svcs, pr.ID)

	rfq, err := svcs.RFQ.OpenRFQ(ctx, uBuyerOne, pr.ID, "")
	if err != nil {
		t.Fatalf("open RFQ: %v", err)
	}

	lead1, lead2 := 15, 20
	q1, err := svcs.RFQ.AddQuotation(ctx, uBuyerOne, rfq.ID, QuotationReq{
		SupplierID:   "sup-1",
		SupplierName: "供应商一",
		TotalAmount:  amount1,
		LeadTimeDays: &lead1,
		PaymentTerms: "Net 30",
	})
	if err != nil {
		t.Fatalf("add quotation 1: %v", err)
	}
	q2, err := svcs.RFQ.AddQuotation(ctx, uBuyerOne, rfq.ID, QuotationReq{
		SupplierID:   "sup-2",
		SupplierName: "供应商二",
		TotalAmount:  amount2,
		LeadTimeDays: &lead2,
		PaymentTerms: "Net 60",
	})
	if err != nil {
		t.Fatalf("add quotation 2: %v", err)
	}

	pr, err = svcs.PR.Get(ctx, pr.ID)
	if err != nil {
		t.Fatalf("reload PR: %v", err)
	}
	if pr.Status != entity.PRStatusQuotationReceived {
		t.Fatalf("expected status %s after 2 quotations, got %s", entity.PRStatusQuotationReceived, pr.Status)
	}
	return pr, q1, q2
}
