//go:build linux

package firewall

import (
	"encoding/hex"
	"sync"

	"github.com/google/nftables"
	"github.com/stretchr/testify/mock"
)

// MockNFTablesConn is a mock implementation of NFTablesConn for testing.
// Pending element changes are applied to an in-memory copy on Flush.
type MockNFTablesConn struct {
	mock.Mock
	mu sync.Mutex

	sets     map[string]*nftables.Set
	elements map[string]map[string]bool
	pending  []pendingOp
}

type pendingOp struct {
	set string
	key string
	add bool
}

// NewMockNFTablesConn creates a new mock nftables connection holding the
// gateway's sets.
func NewMockNFTablesConn(tableName string) *MockNFTablesConn {
	table := &nftables.Table{Name: tableName, Family: nftables.TableFamilyINet}
	return &MockNFTablesConn{
		sets: map[string]*nftables.Set{
			ClientsSet: {Name: ClientsSet, Table: table, Concatenation: true},
			RevokedSet: {Name: RevokedSet, Table: table, KeyType: nftables.TypeEtherAddr},
		},
		elements: map[string]map[string]bool{
			ClientsSet: {},
			RevokedSet: {},
		},
	}
}

func (m *MockNFTablesConn) GetSets(t *nftables.Table) ([]*nftables.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(t)
	if args.Get(0) != nil {
		return args.Get(0).([]*nftables.Set), args.Error(1)
	}
	if err := args.Error(1); err != nil {
		return nil, err
	}
	sets := make([]*nftables.Set, 0, len(m.sets))
	for _, s := range m.sets {
		sets = append(sets, s)
	}
	return sets, nil
}

func (m *MockNFTablesConn) GetSetElements(s *nftables.Set) ([]nftables.SetElement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []nftables.SetElement
	for k := range m.elements[s.Name] {
		key, _ := hex.DecodeString(k)
		out = append(out, nftables.SetElement{Key: key})
	}
	return out, nil
}

func (m *MockNFTablesConn) SetAddElements(s *nftables.Set, vals []nftables.SetElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(s.Name, vals)
	for _, v := range vals {
		m.pending = append(m.pending, pendingOp{set: s.Name, key: hex.EncodeToString(v.Key), add: true})
	}
	return args.Error(0)
}

func (m *MockNFTablesConn) SetDeleteElements(s *nftables.Set, vals []nftables.SetElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called(s.Name, vals)
	for _, v := range vals {
		m.pending = append(m.pending, pendingOp{set: s.Name, key: hex.EncodeToString(v.Key)})
	}
	return args.Error(0)
}

// Flush commits pending changes unless the expectation returns an error,
// in which case the whole batch is discarded like a failed transaction.
func (m *MockNFTablesConn) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	args := m.Called()
	pending := m.pending
	m.pending = nil
	if err := args.Error(0); err != nil {
		return err
	}
	for _, op := range pending {
		if op.add {
			m.elements[op.set][op.key] = true
		} else {
			delete(m.elements[op.set], op.key)
		}
	}
	return nil
}

// HasElement reports whether key is committed in the named set.
func (m *MockNFTablesConn) HasElement(set string, key []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elements[set][hex.EncodeToString(key)]
}

// Len returns the number of committed elements in the named set.
func (m *MockNFTablesConn) Len(set string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.elements[set])
}
