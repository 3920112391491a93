package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// MemoryStore keeps tables in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]reflect.Value
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]reflect.Value)}
}

func (m *MemoryStore) Replace(ctx context.Context, table string, rows interface{}) error {
	if err := ctx.Err(); err != nil {
		return &OpError{Op: "replace", Table: table, Err: err}
	}
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return &OpError{Op: "replace", Table: table, Err: fmt.Errorf("expected a slice of rows but got %T", rows)}
	}
	c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	reflect.Copy(c, v)
	m.mu.Lock()
	m.tables[table] = c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, table string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return &OpError{Op: "load", Table: table, Err: err}
	}
	p := reflect.ValueOf(out)
	if p.Kind() != reflect.Ptr || p.Elem().Kind() != reflect.Slice {
		return &OpError{Op: "load", Table: table, Err: fmt.Errorf("expected a pointer to a slice but got %T", out)}
	}
	m.mu.RLock()
	src, ok := m.tables[table]
	m.mu.RUnlock()
	target := p.Elem()
	if !ok {
		target.Set(reflect.MakeSlice(target.Type(), 0, 0))
		return nil
	}
	if src.Type() != target.Type() {
		return &OpError{Op: "load", Table: table, Err: fmt.Errorf("table holds %v, cannot load into %v", src.Type(), target.Type())}
	}
	c := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
	reflect.Copy(c, src)
	target.Set(c)
	return nil
}

// Tables returns the names of tables that have been written.
func (m *MemoryStore) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	retval := make([]string, 0, len(m.tables))
	for k := range m.tables {
		retval = append(retval, k)
	}
	return retval
}

func (m *MemoryStore) Close() error {
	return nil
}
