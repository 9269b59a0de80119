package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oakline/procure/internal/workflow/wferr"
)

// memSequenceStore 内存序列号存储，可注入冲突行为
type memSequenceStore struct {
	mu    sync.Mutex
	taken map[string]bool
	// onExists 在 SequenceExists 检查前回调，用于模拟并发抢占
	onExists func(number string)
}

func newMemSequenceStore(numbers ...string) *memSequenceStore {
	s := &memSequenceStore{taken: make(map[string]bool)}
	for _, n := range numbers {
		s.taken[n] = true
	}
	return s
}

func (s *memSequenceStore) ListSequences(_ context.Context, prefix string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var seqs []int
	for n := range s.taken {
		if strings.HasPrefix(n, prefix) {
			if v, err := strconv.Atoi(strings.TrimPrefix(n, prefix)); err == nil {
				seqs = append(seqs, v)
			}
		}
	}
	return seqs, nil
}

func (s *memSequenceStore) SequenceExists(_ context.Context, number string) (bool, error) {
	if s.onExists != nil {
		s.onExists(number)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taken[number], nil
}

func (s *memSequenceStore) claim(number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taken[number] = true
}

func newTestAllocator(store SequenceStore) *SequenceAllocator {
	a := NewSequenceAllocator(store)
	a.sleep = func(time.Duration) {}
	return a
}

func TestAllocateFirstNumber(t *testing.T) {
	a := newTestAllocator(newMemSequenceStore())
	date := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	got, err := a.Allocate(context.Background(), "IT", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "IT-20260315-0001" {
		t.Errorf("expected IT-20260315-0001, got %s", got)
	}
}

// TestAllocateFillsGap 删除释放的空洞必须优先回填
func TestAllocateFillsGap(t *testing.T) {
	store := newMemSequenceStore(
		"IT-20260315-0001",
		"IT-20260315-0002",
		"IT-20260315-0004",
	)
	a := newTestAllocator(store)
	date := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	got, err := a.Allocate(context.Background(), "IT", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "IT-20260315-0003" {
		t.Errorf("expected gap fill IT-20260315-0003, got %s", got)
	}
}

func TestAllocatePrefixIsolation(t *testing.T) {
	store := newMemSequenceStore("HR-20260315-0001", "IT-20260314-0001")
	a := newTestAllocator(store)
	date := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	got, err := a.Allocate(context.Background(), "IT", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "IT-20260315-0001" {
		t.Errorf("other departments/dates must not affect the sequence, got %s", got)
	}
}

// TestAllocateRetriesOnConflict 前几次复查都被并发抢占，重试后应拿到新号
func TestAllocateRetriesOnConflict(t *testing.T) {
	store := newMemSequenceStore()
	conflicts := 0
	store.onExists = func(number string) {
		if conflicts < 3 {
			conflicts++
			store.claim(number) // 模拟别的实例刚好占了同一个号
		}
	}
	a := newTestAllocator(store)
	date := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	got, err := a.Allocate(context.Background(), "IT", date)
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if got != "IT-20260315-0004" {
		t.Errorf("expected IT-20260315-0004 after 3 conflicts, got %s", got)
	}
}

// TestAllocateExhaustsRetries 每次复查都冲突，5次后返回SequenceExhausted
func TestAllocateExhaustsRetries(t *testing.T) {
	store := newMemSequenceStore()
	attempts := 0
	store.onExists = func(number string) {
		attempts++
		store.claim(number)
	}
	a := newTestAllocator(store)
	date := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	_, err := a.Allocate(context.Background(), "IT", date)
	if err == nil {
		t.Fatal("expected error when every attempt conflicts")
	}
	if !wferr.IsKind(err, wferr.KindSequenceExhausted) {
		t.Errorf("expected kind %s, got %s", wferr.KindSequenceExhausted, wferr.KindOf(err))
	}
	if attempts != sequenceMaxAttempts {
		t.Errorf("expected exactly %d attempts, got %d", sequenceMaxAttempts, attempts)
	}
}

func TestAllocateExhaustedRange(t *testing.T) {
	store := newMemSequenceStore()
	for i := 1; i <= sequenceMax; i++ {
		store.claim(fmt.Sprintf("IT-20260315-%04d", i))
	}
	a := newTestAllocator(store)
	date := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	_, err := a.Allocate(context.Background(), "IT", date)
	if !wferr.IsKind(err, wferr.KindSequenceExhausted) {
		t.Fatalf("expected sequence exhausted when all 9999 numbers are taken, got %v", err)
	}
}

func TestSmallestMissing(t *testing.T) {
	cases := []struct {
		seqs []int
		want int
	}{
		{nil, 1},
		{[]int{1, 2, 3}, 4},
		{[]int{1, 2, 4}, 3},
		{[]int{2, 3}, 1},
		{[]int{5}, 1},
		{[]int{1, 1, 2}, 3},
	}
	for _, c := range cases {
		if got := smallestMissing(c.seqs); got != c.want {
			t.Errorf("smallestMissing(%v) = %d, want %d", c.seqs, got, c.want)
		}
	}
}
