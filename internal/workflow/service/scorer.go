package service

import (
	"strings"

	"github.com/oakline/procure/internal/workflow/entity"
)

// 综合推荐分权重
const (
	weightPrice    = 0.7
	weightLeadTime = 0.2
	weightPayment  = 0.1
)

// 缺失交期按最差处理
const missingLeadTimeDays = 3650

// QuotationScore 单份报价的评分结果
type QuotationScore struct {
	QuotationID   string
	Score         *float64
	IsRecommended bool
}

// ScoreQuotations 对一张询价单的报价计算综合推荐分。
// 仅 valid/pending 参与评分；不足2份时全部清分且无推荐。
// 入参须按 created_at,id 稳定排序，同分时序内首个最高者获推荐标记。
func ScoreQuotations(quotations []entity.Quotation) []QuotationScore {
	results := make([]QuotationScore, len(quotations))
	for i, q := range quotations {
		results[i] = QuotationScore{QuotationID: q.ID}
	}

	var eligible []int
	for i, q := range quotations {
		if q.Status == entity.QuotationStatusValid || q.Status == entity.QuotationStatusPending {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) < 2 {
		return results
	}

	minPrice := quotations[eligible[0]].TotalAmount
	minLead := leadTimeOf(quotations[eligible[0]])
	for _, i := range eligible[1:] {
		if quotations[i].TotalAmount < minPrice {
			minPrice = quotations[i].TotalAmount
		}
		if lt := leadTimeOf(quotations[i]); lt < minLead {
			minLead = lt
		}
	}

	bestIdx := -1
	var bestScore float64
	for _, i := range eligible {
		q := quotations[i]
		score := weightPrice*relativeScore(q.TotalAmount, minPrice) +
			weightLeadTime*relativeScore(float64(leadTimeOf(q)), float64(minLead)) +
			weightPayment*paymentScore(q.PaymentTerms)
		s := score
		results[i].Score = &s
		if bestIdx == -1 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}
	results[bestIdx].IsRecommended = true
	return results
}

// relativeScore 相对最优值的百分比扣分，落在[0,100]
func relativeScore(value, best float64) float64 {
	if best <= 0 {
		return 100
	}
	score := 100 - (value-best)/best*100
	if score < 0 {
		return 0
	}
	return score
}

func leadTimeOf(q entity.Quotation) int {
	if q.LeadTimeDays == nil {
		return missingLeadTimeDays
	}
	return *q.LeadTimeDays
}

// paymentScore 付款条件启发式打分（自由文本，不区分大小写）
func paymentScore(terms string) float64 {
	t := strings.ToLower(terms)
	switch {
	case strings.Contains(t, "advance") || strings.Contains(t, "prepaid"):
		return 30
	case strings.Contains(t, "net 30"):
		return 80
	case strings.Contains(t, "net 60"):
		return 60
	case strings.Contains(t, "net 90"):
		return 40
	case strings.Contains(t, "cod"):
		return 50
	default:
		return 50
	}
}
