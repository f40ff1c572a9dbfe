package neo4j

import (
	"context"
	stderrors "errors"
	"sort"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
)

type call struct {
	cypher string
	params map[string]any
}

type node struct {
	createdAt int64
	document  string
	atoms     []map[string]any
	bonds     []map[string]any
}

// fakeGraph answers the store's Cypher statements from memory.
type fakeGraph struct {
	mu       sync.Mutex
	nodes    map[string]*node
	calls    []call
	modes    []neo4j.AccessMode
	down     bool
	failRun  string
	closed   int
	sessions int
}

func newFakeGraph() *fakeGraph { return &fakeGraph{nodes: map[string]*node{}} }

func (f *fakeGraph) VerifyConnectivity(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return stderrors.New("connection refused")
	}
	return nil
}

func (f *fakeGraph) NewSession(_ context.Context, cfg neo4j.SessionConfig) session {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	f.modes = append(f.modes, cfg.AccessMode)
	return fakeSession{f}
}

func (f *fakeGraph) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeGraph) locked(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

type fakeSession struct{ g *fakeGraph }

func (s fakeSession) ExecuteRead(_ context.Context, work func(Transaction) (any, error)) (any, error) {
	return work(fakeTx{s.g})
}

func (s fakeSession) ExecuteWrite(_ context.Context, work func(Transaction) (any, error)) (any, error) {
	return work(fakeTx{s.g})
}

func (s fakeSession) Close(context.Context) error { return nil }

type fakeTx struct{ g *fakeGraph }

func (t fakeTx) Run(_ context.Context, cypher string, params map[string]any) (Result, error) {
	g := t.g
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call{cypher: cypher, params: params})
	if g.down || (g.failRun != "" && g.failRun == cypher) {
		return nil, stderrors.New("Neo.TransientError.General.DatabaseUnavailable")
	}

	id, _ := params["id"].(string)
	switch cypher {
	case cypherUpsertMolecule:
		n := g.nodes[id]
		if n == nil {
			n = &node{}
			g.nodes[id] = n
		}
		n.createdAt = params["created_at"].(int64)
		n.document = params["document"].(string)
		return &fakeResult{}, nil
	case cypherClearAtoms:
		if n := g.nodes[id]; n != nil {
			n.atoms, n.bonds = nil, nil
		}
		return &fakeResult{}, nil
	case cypherCreateAtoms:
		g.nodes[id].atoms = params["atoms"].([]map[string]any)
		return &fakeResult{}, nil
	case cypherCreateBonds:
		g.nodes[id].bonds = params["bonds"].([]map[string]any)
		return &fakeResult{}, nil
	case cypherFindMolecule:
		if n := g.nodes[id]; n != nil {
			return rows("document", n.document), nil
		}
		return &fakeResult{}, nil
	case cypherCountMolecules:
		return rows("total", int64(len(g.nodes))), nil
	case cypherListMolecules:
		ids := make([]string, 0, len(g.nodes))
		for k := range g.nodes {
			ids = append(ids, k)
		}
		sort.Slice(ids, func(i, j int) bool {
			a, b := g.nodes[ids[i]], g.nodes[ids[j]]
			if a.createdAt != b.createdAt {
				return a.createdAt > b.createdAt
			}
			return ids[i] < ids[j]
		})
		offset, limit := params["offset"].(int64), params["limit"].(int64)
		var docs []any
		for i := offset; i < int64(len(ids)) && i < offset+limit; i++ {
			docs = append(docs, g.nodes[ids[i]].document)
		}
		return rows("document", docs...), nil
	case cypherDeleteMolecule:
		if _, ok := g.nodes[id]; ok {
			delete(g.nodes, id)
			return rows("deleted", int64(1)), nil
		}
		return rows("deleted", int64(0)), nil
	}
	return &fakeResult{}, nil
}

func rows(key string, values ...any) *fakeResult {
	r := &fakeResult{}
	for _, v := range values {
		r.records = append(r.records, &neo4j.Record{Keys: []string{key}, Values: []any{v}})
	}
	return r
}

type fakeResult struct {
	records []*neo4j.Record
	cur     *neo4j.Record
}

func (r *fakeResult) Next(context.Context) bool {
	if len(r.records) == 0 {
		r.cur = nil
		return false
	}
	r.cur, r.records = r.records[0], r.records[1:]
	return true
}

func (r *fakeResult) Record() *neo4j.Record { return r.cur }
func (r *fakeResult) Err() error            { return nil }

func newTestGraph() (*MoleculeGraph, *fakeGraph) {
	fg := newFakeGraph()
	d := newDriver(fg, "", logging.NewNopLogger())
	return NewMoleculeGraph(d, nil), fg
}

//Personal.AI order the ending
