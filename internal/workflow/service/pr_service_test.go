package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/wferr"
)

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	svcs, _ := setupWorkflowTest(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("%s-%s-", testDept, time.Now().Format("20060102"))

	pr1, err := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title: "第一单",
		Items: []PRItemInput{{Description: "物料A", Quantity: 1, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create PR: %v", err)
	}
	if pr1.PRNumber != prefix+"0001" {
		t.Errorf("expected %s0001, got %s", prefix, pr1.PRNumber)
	}
	if pr1.Status != entity.PRStatusDraft {
		t.Errorf("new PR should be draft, got %s", pr1.Status)
	}
	if pr1.DepartmentCode != testDept || pr1.BranchCode != testBranch {
		t.Errorf("department/branch should come from requestor profile, got %s/%s",
			pr1.DepartmentCode, pr1.BranchCode)
	}

	pr2, err := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title: "第二单",
		Items: []PRItemInput{{Description: "物料B", Quantity: 1, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create second PR: %v", err)
	}
	if pr2.PRNumber != prefix+"0002" {
		t.Errorf("expected %s0002, got %s", prefix, pr2.PRNumber)
	}
}

// TestDeleteDraftFreesSequence 删除草稿释放编号供回填，撤销不释放
func TestDeleteDraftFreesSequence(t *testing.T) {
	svcs, _ := setupWorkflowTest(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("%s-%s-", testDept, time.Now().Format("20060102"))

	pr1, _ := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title: "将被删除",
		Items: []PRItemInput{{Description: "物料A", Quantity: 1, UnitPrice: 10}},
	})
	pr2, _ := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title: "将被撤销",
		Items: []PRItemInput{{Description: "物料B", Quantity: 1, UnitPrice: 10}},
	})

	if err := svcs.PR.DeleteDraft(ctx, uRequestor, pr1.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := svcs.PR.Cancel(ctx, uRequestor, pr2.ID, "不需要了"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// 删除的0001被回填；撤销的0002仍占用
	pr3, err := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title: "回填编号",
		Items: []PRItemInput{{Description: "物料C", Quantity: 1, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create after delete: %v", err)
	}
	if pr3.PRNumber != prefix+"0001" {
		t.Errorf("expected freed %s0001, got %s", prefix, pr3.PRNumber)
	}
	pr4, _ := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title: "下一个编号",
		Items: []PRItemInput{{Description: "物料D", Quantity: 1, UnitPrice: 10}},
	})
	if pr4.PRNumber != prefix+"0003" {
		t.Errorf("cancelled PR keeps its number, expected %s0003, got %s", prefix, pr4.PRNumber)
	}

	// 删除后不可见，撤销后仍可见
	if _, err := svcs.PR.Get(ctx, pr1.ID); !wferr.IsKind(err, wferr.KindNotFound) {
		t.Errorf("deleted draft should be gone, got %v", err)
	}
	got, err := svcs.PR.Get(ctx, pr2.ID)
	if err != nil {
		t.Fatalf("cancelled PR should stay visible: %v", err)
	}
	if got.Status != entity.PRStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if got.Notes != "不需要了" {
		t.Errorf("cancel reason should land in notes, got %q", got.Notes)
	}
}

func TestDeleteOnlyAllowedForDraft(t *testing.T) {
	svcs, _ := setupWorkflowTest(t)
	ctx := context.Background()

	pr := createSubmittedPR(t, svcs)
	if err := svcs.PR.DeleteDraft(ctx, uRequestor, pr.ID); !wferr.IsKind(err, wferr.KindInvalidTransition) {
		t.Errorf("deleting submitted PR: expected invalid transition, got %v", err)
	}
}

func TestSubmitRequiresItems(t *testing.T) {
	svcs, _ := setupWorkflowTest(t)
	ctx := context.Background()

	pr, err := svcs.PR.Create(ctx, uRequestor, CreatePRReq{Title: "空单"})
	if err != nil {
		t.Fatalf("create PR: %v", err)
	}
	if _, err := svcs.PR.Submit(ctx, uRequestor, pr.ID); !wferr.IsKind(err, wferr.KindValidation) {
		t.Errorf("submitting empty PR: expected validation error, got %v", err)
	}
}

func TestItemValidation(t *testing.T) {
	svcs, _ := setupWorkflowTest(t)
	ctx := context.Background()

	cases := []struct {
		name string
		item PRItemInput
	}{
		{"missing description", PRItemInput{Quantity: 1, UnitPrice: 10}},
		{"zero quantity", PRItemInput{Description: "物料", Quantity: 0, UnitPrice: 10}},
		{"negative quantity", PRItemInput{Description: "物料", Quantity: -1, UnitPrice: 10}},
		{"negative price", PRItemInput{Description: "物料", Quantity: 1, UnitPrice: -5}},
	}
	for _, c := range cases {
		_, err := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
			Title: "非法行项",
			Items: []PRItemInput{c.item},
		})
		if !wferr.IsKind(err, wferr.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", c.name, err)
		}
	}
}

// TestTotalAmountOnlyOverridesUpward 外部总额只允许上调，低于行项合计时取合计
func TestTotalAmountOnlyOverridesUpward(t *testing.T) {
	svcs, _ := setupWorkflowTest(t)
	ctx := context.Background()

	lower := 5.0
	pr, err := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title:       "总额下调",
		TotalAmount: &lower,
		Items:       []PRItemInput{{Description: "物料A", Quantity: 2, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create PR: %v", err)
	}
	if pr.TotalAmount != 20 {
		t.Errorf("total below item sum must be ignored, expected 20, got %v", pr.TotalAmount)
	}

	higher := 50.0
	pr, err = svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title:       "总额上调",
		TotalAmount: &higher,
		Items:       []PRItemInput{{Description: "物料A", Quantity: 2, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create PR: %v", err)
	}
	if pr.TotalAmount != 50 {
		t.Errorf("upward override should apply, expected 50, got %v", pr.TotalAmount)
	}
}

// TestOwnershipGuard 只能操作自己的采购申请
func TestOwnershipGuard(t *testing.T) {
	svcs, _ := setupWorkflowTest(t)
	ctx := context.Background()

	pr, err := svcs.PR.Create(ctx, uRequestor, CreatePRReq{
		Title: "归属校验",
		Items: []PRItemInput{{Description: "物料A", Quantity: 1, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create PR: %v", err)
	}

	if _, err := svcs.PR.Submit(ctx, uBuyerOne, pr.ID); !wferr.IsKind(err, wferr.KindForbidden) {
		t.Errorf("submit by non-owner: expected forbidden, got %v", err)
	}
	if _, err := svcs.PR.Cancel(ctx, uManager, pr.ID, ""); !wferr.IsKind(err, wferr.KindForbidden) {
		t.Errorf("cancel by non-owner: expected forbidden, got %v", err)
	}
}

// TestMarkPaymentDoneRoleGuard 只有财务（或admin）可确认付款
func TestMarkPaymentDoneRoleGuard(t *testing.T) {
	svcs, _ := setupWorkflowTest(t)
	ctx := context.Background()

	pr, q1, _ := prepareQuotationReceived(t, svcs, 100, 90, 120)
	if _, err := svcs.Budget.SelectSupplier(ctx, uBuyerLeader, pr.ID, SelectSupplierReq{
		QuotationID: q1.ID,
		Reason:      "价格最优",
	}); err != nil {
		t.Fatalf("select supplier: %v", err)
	}

	if _, err := svcs.PR.MarkPaymentDone(ctx, uBuyerLeader, pr.ID); !wferr.IsKind(err, wferr.KindForbidden) {
		t.Errorf("non-finance payment: expected forbidden, got %v", err)
	}
	got, err := svcs.PR.MarkPaymentDone(ctx, uFinance, pr.ID)
	if err != nil {
		t.Fatalf("mark payment done: %v", err)
	}
	if got.Status != entity.PRStatusPaymentDone {
		t.Errorf("expected %s, got %s", entity.PRStatusPaymentDone, got.Status)
	}
	// 终态不可重复确认
	if _, err := svcs.PR.MarkPaymentDone(ctx, uFinance, pr.ID); !wferr.IsKind(err, wferr.KindInvalidTransition) {
		t.Errorf("double payment: expected invalid transition, got %v", err)
	}
}

// TestSubmitRequiresConfiguredManager 申请人缺直属上级时提交失败且状态不变
func TestSubmitRequiresConfiguredManager(t *testing.T) {
	svcs, db := setupWorkflowTest(t)
	ctx := context.Background()

	orphan := "u-orphan"
	db.Create(&entity.User{
		ID: orphan, Username: "user_" + orphan, DisplayName: "无上级申请人",
		Role: entity.RoleRequestor, BranchCode: testBranch, DepartmentCode: testDept, Active: true,
	})

	pr, err := svcs.PR.Create(ctx, orphan, CreatePRReq{
		Title: "无上级",
		Items: []PRItemInput{{Description: "物料A", Quantity: 1, UnitPrice: 10}},
	})
	if err != nil {
		t.Fatalf("create PR: %v", err)
	}

	if _, err := svcs.PR.Submit(ctx, orphan, pr.ID); !wferr.IsKind(err, wferr.KindNoApprover) {
		t.Fatalf("expected %s, got %v", wferr.KindNoApprover, err)
	}
	got, _ := svcs.PR.Get(ctx, pr.ID)
	if got.Status != entity.PRStatusDraft {
		t.Errorf("failed submit must not change status, got %s", got.Status)
	}
}
