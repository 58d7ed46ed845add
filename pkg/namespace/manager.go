package namespace

import (
	"sync"

	"github.com/kavlex/vectorcore/pkg/vcerrors"
)

// Manager owns every namespace's store and quota state, creating stores
// lazily via Opener on first access (spec §4.9).
type Manager struct {
	mu         sync.RWMutex
	open       Opener
	namespaces map[string]*Namespace
	quotas     map[string]Quota
	defaultQ   Quota
}

// NewManager creates a Manager that opens namespace stores via open and
// applies defaultQuota to namespaces without an explicit override.
func NewManager(open Opener, defaultQuota Quota) *Manager {
	return &Manager{
		open:       open,
		namespaces: make(map[string]*Namespace),
		quotas:     make(map[string]Quota),
		defaultQ:   defaultQuota,
	}
}

// SetQuota overrides the quota for a (possibly not-yet-opened) namespace.
func (m *Manager) SetQuota(id string, q Quota) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotas[id] = q
	if ns, ok := m.namespaces[id]; ok {
		ns.mu.Lock()
		ns.Quota = q
		ns.mu.Unlock()
	}
}

// Get returns the namespace for id, opening its store on first access.
func (m *Manager) Get(id string) (*Namespace, error) {
	m.mu.RLock()
	ns, ok := m.namespaces[id]
	m.mu.RUnlock()
	if ok {
		return ns, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ns, ok := m.namespaces[id]; ok {
		return ns, nil
	}

	store, err := m.open(id)
	if err != nil {
		return nil, vcerrors.New("namespace_open", vcerrors.KindIoError, err).WithContext("namespace", id)
	}
	quota, ok := m.quotas[id]
	if !ok {
		quota = m.defaultQ
	}
	ns := newNamespace(id, store, quota)
	m.namespaces[id] = ns
	return ns, nil
}

// List returns every namespace id the Manager has opened so far.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.namespaces))
	for id := range m.namespaces {
		ids = append(ids, id)
	}
	return ids
}

// Delete marks id for deletion and closes its store. The namespace record
// itself is retained with StatusPendingDeletion so repeat Delete calls and
// status queries remain well-defined; callers sweeping fully-deleted
// namespaces should reap entries in that status via List+Status.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	ns, ok := m.namespaces[id]
	m.mu.Unlock()
	if !ok {
		return vcerrors.New("namespace_delete", vcerrors.KindNotFound, vcerrors.ErrNotFound).WithContext("namespace", id)
	}
	ns.SetStatus(StatusPendingDeletion)
	return ns.Store.Close()
}

// CloseAll closes every opened namespace's store, e.g. during engine
// shutdown.
func (m *Manager) CloseAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var firstErr error
	for _, ns := range m.namespaces {
		if err := ns.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
