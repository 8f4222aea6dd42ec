package store

import (
	"context"
	"sort"
	"sync"

	"github.com/marccolburn/poc-helper-menu/pkg/model"
)

// MemoryStore keeps everything in process memory. Used for tests and for
// throwaway sessions (memory://).
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	labs  map[string]*model.Lab
	hosts map[string][]*model.Host // per lab, insertion order
	links map[string][]*model.Link // per lab, insertion order
}

func newMemState() *memState {
	return &memState{
		labs:  make(map[string]*model.Lab),
		hosts: make(map[string][]*model.Host),
		links: make(map[string][]*model.Link),
	}
}

// clone copies maps and slices. Records are replaced, never mutated in
// place, so sharing record pointers between states is safe.
func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.labs {
		c.labs[k] = v
	}
	for k, v := range s.hosts {
		c.hosts[k] = append([]*model.Host(nil), v...)
	}
	for k, v := range s.links {
		c.links[k] = append([]*model.Link(nil), v...)
	}
	return c
}

func (s *memState) apply(o op) error {
	switch o.kind {
	case opCreateLab:
		if _, ok := s.labs[o.lab.Name]; ok {
			return duplicate("lab '" + o.lab.Name + "'")
		}
		s.labs[o.lab.Name] = o.lab
	case opUpdateLab:
		if _, ok := s.labs[o.lab.Name]; !ok {
			return labNotFound(o.lab.Name)
		}
		s.labs[o.lab.Name] = o.lab
	case opDeleteLab:
		if _, ok := s.labs[o.name]; !ok {
			return labNotFound(o.name)
		}
		delete(s.labs, o.name)
		delete(s.hosts, o.name)
		delete(s.links, o.name)
	case opAddHost:
		if _, ok := s.labs[o.host.LabName]; !ok {
			return labNotFound(o.host.LabName)
		}
		for _, h := range s.hosts[o.host.LabName] {
			if h.Hostname == o.host.Hostname {
				return duplicate("host '" + h.Hostname + "' in lab '" + h.LabName + "'")
			}
		}
		s.hosts[o.host.LabName] = append(s.hosts[o.host.LabName], o.host)
	case opAddLink:
		if _, ok := s.labs[o.link.LabName]; !ok {
			return labNotFound(o.link.LabName)
		}
		for _, l := range s.links[o.link.LabName] {
			if l.ID == o.link.ID || l.Key() == o.link.Key() {
				return duplicate("link " + o.link.String() + " in lab '" + l.LabName + "'")
			}
		}
		s.links[o.link.LabName] = append(s.links[o.link.LabName], o.link)
	case opUpdateLink:
		links := s.links[o.link.LabName]
		for i, l := range links {
			if l.ID == o.link.ID {
				u := *l
				u.State = o.link.State
				u.Impairment = o.link.Impairment
				links[i] = &u
				return nil
			}
		}
		return linkNotFound(o.link.LabName, o.link.ID)
	}
	return nil
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (m *MemoryStore) GetLab(_ context.Context, name string) (*model.Lab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.state.labs[name]
	if !ok {
		return nil, labNotFound(name)
	}
	c := *l
	return &c, nil
}

func (m *MemoryStore) ListLabs(_ context.Context) ([]*model.Lab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	labs := make([]*model.Lab, 0, len(m.state.labs))
	for _, l := range m.state.labs {
		c := *l
		labs = append(labs, &c)
	}
	sort.Slice(labs, func(i, j int) bool { return labs[i].Name < labs[j].Name })
	return labs, nil
}

func (m *MemoryStore) GetHost(_ context.Context, lab, hostname string) (*model.Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.state.hosts[lab] {
		if h.Hostname == hostname {
			c := *h
			return &c, nil
		}
	}
	return nil, hostNotFound(lab, hostname)
}

func (m *MemoryStore) FindHost(_ context.Context, lab, fragment string) (*model.Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := matchHost(m.state.hosts[lab], fragment)
	if h == nil {
		return nil, hostNotFound(lab, fragment)
	}
	c := *h
	return &c, nil
}

func (m *MemoryStore) ListHosts(_ context.Context, lab string) ([]*model.Host, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hosts := make([]*model.Host, 0, len(m.state.hosts[lab]))
	for _, h := range m.state.hosts[lab] {
		c := *h
		hosts = append(hosts, &c)
	}
	return hosts, nil
}

func (m *MemoryStore) GetLink(_ context.Context, lab, id string) (*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.state.links[lab] {
		if l.ID == id {
			c := *l
			return &c, nil
		}
	}
	return nil, linkNotFound(lab, id)
}

func (m *MemoryStore) ListLinks(_ context.Context, lab string) ([]*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	links := make([]*model.Link, 0, len(m.state.links[lab]))
	for _, l := range m.state.links[lab] {
		c := *l
		links = append(links, &c)
	}
	return links, nil
}

func (m *MemoryStore) Begin(_ context.Context) (Tx, error) {
	return &memTx{store: m}, nil
}

func (m *MemoryStore) Close() error { return nil }

type memTx struct {
	batch
	store *MemoryStore
}

// Commit applies the batch to a copy of the current state and swaps it in
// only if every op succeeded.
func (t *memTx) Commit(_ context.Context) error {
	ops, err := t.finish()
	if err != nil {
		return err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	next := t.store.state.clone()
	for _, o := range ops {
		if err := next.apply(o); err != nil {
			return err
		}
	}
	t.store.state = next
	return nil
}
