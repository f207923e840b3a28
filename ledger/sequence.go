package ledger

import (
	"context"
	"fmt"
)

// SequenceAllocator issues invoice numbers per (user, company). The store's
// NextSequence is a single atomic read-modify-write, so concurrent callers on
// one key never see the same value and distinct keys never contend.
type SequenceAllocator struct {
	Store SequenceStore
}

func NewSequenceAllocator(store SequenceStore) *SequenceAllocator {
	return &SequenceAllocator{Store: store}
}

// NextNumber consumes and returns the next number, starting at 1.
func (a *SequenceAllocator) NextNumber(ctx context.Context, userID, companyID string) (int64, error) {
	return nextNumber(ctx, a.Store, userID, companyID)
}

// PeekNumber returns the number NextNumber would issue without consuming it.
func (a *SequenceAllocator) PeekNumber(ctx context.Context, userID, companyID string) (int64, error) {
	if err := checkSequenceKey(userID, companyID); err != nil {
		return 0, err
	}
	current, err := a.Store.CurrentSequence(ctx, userID, companyID)
	if err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	return current + 1, nil
}

func nextNumber(ctx context.Context, s SequenceStore, userID, companyID string) (int64, error) {
	if err := checkSequenceKey(userID, companyID); err != nil {
		return 0, err
	}
	n, err := s.NextSequence(ctx, userID, companyID)
	if err != nil {
		return 0, fmt.Errorf("allocate invoice number: %w", err)
	}
	return n, nil
}

func checkSequenceKey(userID, companyID string) error {
	if userID == "" {
		return invalid("userId", "is required")
	}
	if companyID == "" {
		return invalid("selectedCompanyId", "is required")
	}
	return nil
}
