package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oakline/procure/internal/workflow/wferr"
)

// SequenceStore 序列号存储，生产实现为PR仓库
type SequenceStore interface {
	// ListSequences 列出指定前缀下非删除PR已占用的4位序号
	ListSequences(ctx context.Context, prefix string) ([]int, error)
	// SequenceExists 指定编号是否已被占用
	SequenceExists(ctx context.Context, number string) (bool, error)
}

const (
	sequenceMaxAttempts = 5
	sequenceBackoffUnit = 100 * time.Millisecond
	sequenceMax         = 9999
)

// SequenceAllocator 生成 {DEPT}-{YYYYMMDD}-{seq4} 人读编号。
// 回填删除释放的空洞而不是单调递增；并发冲突时线性退避重试。
type SequenceAllocator struct {
	store SequenceStore
	sleep func(time.Duration) // 测试中可替换
}

func NewSequenceAllocator(store SequenceStore) *SequenceAllocator {
	return &SequenceAllocator{store: store, sleep: time.Sleep}
}

// Allocate 为部门+日期分配下一个编号，重试耗尽返回SequenceExhausted
func (a *SequenceAllocator) Allocate(ctx context.Context, departmentCode string, date time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%s-", departmentCode, date.Format("20060102"))

	for attempt := 1; attempt <= sequenceMaxAttempts; attempt++ {
		seqs, err := a.store.ListSequences(ctx, prefix)
		if err != nil {
			return "", err
		}

		candidate := smallestMissing(seqs)
		if candidate > sequenceMax {
			return "", wferr.E(wferr.KindSequenceExhausted,
				"前缀 %s 下的序号已用尽", prefix).WithID("prefix", prefix)
		}
		number := fmt.Sprintf("%s%04d", prefix, candidate)

		// 竞态检测：计算后复查，冲突则退避重试
		exists, err := a.store.SequenceExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		if attempt < sequenceMaxAttempts {
			a.sleep(time.Duration(attempt) * sequenceBackoffUnit)
		}
	}

	return "", wferr.E(wferr.KindSequenceExhausted,
		"序号分配重试%d次后仍冲突", sequenceMaxAttempts).WithID("prefix", prefix)
}

// smallestMissing 取 ≥1 的最小缺失整数
func smallestMissing(seqs []int) int {
	sort.Ints(seqs)
	next := 1
	for _, s := range seqs {
		if s < next {
			continue
		}
		if s == next {
			next++
			continue
		}
		break
	}
	return next
}
