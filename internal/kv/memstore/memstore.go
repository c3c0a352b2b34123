// Package memstore is an in-memory fake implementing kv.Store, used by
// every test above the adapter layer. It has no pagination, no throttling,
// and no transaction limit beyond kv.MaxTransactItems*4 (100 ops), the same
// hard ceiling the DynamoDB backend has, which it enforces by cancelling
// larger transactions.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/trelnex/accessd/internal/kv"
)

type key struct{ entityName, subjectName string }

// Store is a mutex-guarded map implementing kv.Store.
type Store struct {
	mu    sync.Mutex
	items map[key]kv.Row
}

// New returns an empty Store.
func New() *Store {
	return &Store{items: make(map[key]kv.Row)}
}

func (s *Store) GetItem(_ context.Context, entityName, subjectName string) (*kv.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.items[key{entityName, subjectName}]
	if !ok {
		return nil, nil
	}
	cp := row
	return &cp, nil
}

func (s *Store) PutItemIfAbsent(_ context.Context, row kv.Row) (kv.PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{row.EntityName, row.SubjectName}
	if _, ok := s.items[k]; ok {
		return kv.PutResult{AlreadyPresent: true}, nil
	}
	s.items[k] = row
	return kv.PutResult{Inserted: true}, nil
}

func (s *Store) DeleteItem(_ context.Context, entityName, subjectName string) (kv.DeleteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{entityName, subjectName}
	if _, ok := s.items[k]; !ok {
		return kv.DeleteResult{Absent: true}, nil
	}
	delete(s.items, k)
	return kv.DeleteResult{Deleted: true}, nil
}

func (s *Store) QueryByEntity(_ context.Context, entityName, subjectPrefix string) ([]kv.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []kv.Row
	for k, row := range s.items {
		if k.entityName != entityName {
			continue
		}
		if subjectPrefix != "" && !strings.HasPrefix(k.subjectName, subjectPrefix) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectName < out[j].SubjectName })
	return out, nil
}

func (s *Store) ScanAll(_ context.Context) ([]kv.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]kv.Row, 0, len(s.items))
	for _, row := range s.items {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityName != out[j].EntityName {
			return out[i].EntityName < out[j].EntityName
		}
		return out[i].SubjectName < out[j].SubjectName
	})
	return out, nil
}

func (s *Store) TransactWrite(_ context.Context, ops []kv.WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ops) > kv.MaxTransactItems*4 {
		// Mirrors the DynamoDB backend's hard ceiling; callers are expected
		// to chunk before reaching the adapter.
		return &kv.CancelledError{Reasons: make([]kv.ConditionReason, len(ops))}
	}

	reasons := make([]kv.ConditionReason, len(ops))
	failed := false
	for i, op := range ops {
		ck := op.ConditionKey
		if ck == (kv.Key{}) {
			switch {
			case op.Put != nil:
				ck = kv.Key{EntityName: op.Put.EntityName, SubjectName: op.Put.SubjectName}
			case op.Delete != nil:
				ck = *op.Delete
			}
		}
		_, present := s.items[key{ck.EntityName, ck.SubjectName}]
		switch op.Condition {
		case kv.ConditionExists:
			if !present {
				reasons[i] = kv.ReasonConditionFailed
				failed = true
			}
		case kv.ConditionAbsent:
			if present {
				reasons[i] = kv.ReasonConditionFailed
				failed = true
			}
		}
	}
	if failed {
		return &kv.CancelledError{Reasons: reasons}
	}

	for _, op := range ops {
		switch {
		case op.Put != nil:
			s.items[key{op.Put.EntityName, op.Put.SubjectName}] = *op.Put
		case op.Delete != nil:
			delete(s.items, key{op.Delete.EntityName, op.Delete.SubjectName})
		}
	}
	return nil
}
