package service

import (
	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/wferr"
)

// Action 工作流动作（封闭集合）
type Action string

const (
	ActionSubmit               Action = "submit"
	ActionManagerApprove       Action = "manager_approve"
	ActionManagerReject        Action = "manager_reject"
	ActionManagerReturn        Action = "manager_return"
	ActionRequestInfo          Action = "request_info"
	ActionBranchManagerApprove Action = "branch_manager_approve"
	ActionBranchManagerReject  Action = "branch_manager_reject"
	ActionBranchManagerReturn  Action = "branch_manager_return"
	ActionResubmit             Action = "resubmit"
	ActionCancel               Action = "cancel"
	ActionAssign               Action = "assign"
	ActionOpenRFQ              Action = "open_rfq"
	ActionReceiveQuotations    Action = "receive_quotations"
	ActionSelectSupplier       Action = "select_supplier"
	ActionBudgetApprove        Action = "budget_approve"
	ActionBudgetReject         Action = "budget_reject"
	ActionRequestNegotiation   Action = "request_negotiation"
	ActionMarkPaymentDone      Action = "mark_payment_done"
)

// AllActions 全部动作（用于遍历校验）
var AllActions = []Action{
	ActionSubmit,
	ActionManagerApprove,
	ActionManagerReject,
	ActionManagerReturn,
	ActionRequestInfo,
	ActionBranchManagerApprove,
	ActionBranchManagerReject,
	ActionBranchManagerReturn,
	ActionResubmit,
	ActionCancel,
	ActionAssign,
	ActionOpenRFQ,
	ActionReceiveQuotations,
	ActionSelectSupplier,
	ActionBudgetApprove,
	ActionBudgetReject,
	ActionRequestNegotiation,
	ActionMarkPaymentDone,
}

// ValidPRTransitions 状态×动作→缺省目标状态。
// 动态目标（manager_approve按分支策略、select_supplier按预算）由调用方在表内缺省值上覆盖；
// 表外的任何 (状态, 动作) 组合一律非法。
var ValidPRTransitions = map[string]map[Action]string{
	entity.PRStatusDraft: {
		ActionSubmit: entity.PRStatusManagerPending,
		ActionCancel: entity.PRStatusCancelled,
	},
	entity.PRStatusManagerPending: {
		ActionManagerApprove: entity.PRStatusBranchManagerPending, // 分支策略关闭二级审批时为 buyer_leader_pending
		ActionManagerReject:  entity.PRStatusManagerRejected,
		ActionManagerReturn:  entity.PRStatusManagerReturned,
		ActionRequestInfo:    entity.PRStatusNeedMoreInfo,
		ActionCancel:         entity.PRStatusCancelled,
	},
	entity.PRStatusManagerReturned: {
		ActionResubmit: entity.PRStatusManagerPending,
	},
	entity.PRStatusBranchManagerPending: {
		ActionBranchManagerApprove: entity.PRStatusBuyerLeaderPending,
		ActionBranchManagerReject:  entity.PRStatusBranchManagerRejected,
		ActionBranchManagerReturn:  entity.PRStatusBranchManagerReturned,
	},
	entity.PRStatusBranchManagerReturned: {
		ActionResubmit: entity.PRStatusManagerPending, // 重提一律回到一级审批
	},
	entity.PRStatusNeedMoreInfo: {
		ActionResubmit: entity.PRStatusManagerPending,
		ActionCancel:   entity.PRStatusCancelled,
	},
	entity.PRStatusBuyerLeaderPending: {
		ActionAssign: entity.PRStatusAssignedToBuyer, // 仅在行项全覆盖时实际落库
	},
	entity.PRStatusAssignedToBuyer: {
		ActionOpenRFQ: entity.PRStatusRFQInProgress,
	},
	entity.PRStatusRFQInProgress: {
		ActionReceiveQuotations: entity.PRStatusQuotationReceived,
	},
	entity.PRStatusQuotationReceived: {
		ActionSelectSupplier: entity.PRStatusSupplierSelected, // 超预算时为 budget_exception
	},
	entity.PRStatusBudgetException: {
		ActionBudgetApprove:      entity.PRStatusBudgetApproved,
		ActionBudgetReject:       entity.PRStatusBudgetRejected,
		ActionRequestNegotiation: entity.PRStatusQuotationReceived,
	},
	entity.PRStatusBudgetApproved: {
		ActionMarkPaymentDone: entity.PRStatusPaymentDone,
	},
	entity.PRStatusSupplierSelected: {
		ActionMarkPaymentDone: entity.PRStatusPaymentDone,
	},
}

// TargetStatus 查表取动作的缺省目标状态，组合非法时返回InvalidStateTransition
func TargetStatus(from string, action Action) (string, error) {
	if actions, ok := ValidPRTransitions[from]; ok {
		if to, ok := actions[action]; ok {
			return to, nil
		}
	}
	return "", wferr.E(wferr.KindInvalidTransition,
		"状态 %s 不允许执行动作 %s", from, string(action))
}

// CanTransition 组合是否合法
func CanTransition(from string, action Action) bool {
	_, err := TargetStatus(from, action)
	return err == nil
}
