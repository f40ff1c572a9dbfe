package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
)

// fakeCluster is a single-index OpenSearch stand-in.  Searches return every
// stored document; query rendering is covered by the query tests.
type fakeCluster struct {
	mu         sync.Mutex
	index      string
	exists     bool
	mapping    map[string]interface{}
	docs       map[string]document
	lastSearch map[string]interface{}
	refresh    string
	failWrites bool
	down       bool
}

func newFakeCluster(t *testing.T, index string) (*fakeCluster, *httptest.Server) {
	t.Helper()
	f := &fakeCluster{index: index, docs: map[string]document{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeCluster) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"type":"cluster_block_exception","reason":"blocked"}}`)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"2.11.0","distribution":"opensearch"}}`)

	case len(parts) == 1 && parts[0] == f.index && r.Method == http.MethodHead:
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
		}

	case len(parts) == 1 && parts[0] == f.index && r.Method == http.MethodPut:
		if f.exists {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"type":"resource_already_exists_exception","reason":"exists"}}`)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.mapping)
		f.exists = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)

	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodPut:
		if f.failWrites {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"type":"mapper_parsing_exception","reason":"bad field"}}`)
			return
		}
		var d document
		_ = json.NewDecoder(r.Body).Decode(&d)
		f.docs[parts[2]] = d
		f.refresh = r.URL.Query().Get("refresh")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)

	case len(parts) == 3 && parts[1] == "_doc" && r.Method == http.MethodDelete:
		if _, ok := f.docs[parts[2]]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
			return
		}
		delete(f.docs, parts[2])
		_, _ = io.WriteString(w, `{"result":"deleted"}`)

	case len(parts) == 2 && parts[1] == "_search":
		_ = json.NewDecoder(r.Body).Decode(&f.lastSearch)
		f.writeHits(w)

	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"type":"illegal_argument_exception","reason":"unexpected `+r.Method+` `+r.URL.Path+`"}}`)
	}
}

func (f *fakeCluster) writeHits(w http.ResponseWriter) {
	type hit struct {
		Score  float64  `json:"_score"`
		Source document `json:"_source"`
	}
	type bucket struct {
		Key      string `json:"key"`
		DocCount int64  `json:"doc_count"`
	}
	hits := make([]hit, 0, len(f.docs))
	counts := map[string]int64{}
	for _, d := range f.docs {
		hits = append(hits, hit{Score: 1.5, Source: d})
		for _, el := range d.Elements {
			counts[el]++
		}
	}
	buckets := make([]bucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, bucket{Key: k, DocCount: n})
	}
	resp := map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": len(hits)},
			"hits":  hits,
		},
		"aggregations": map[string]interface{}{
			"elements": map[string]interface{}{"buckets": buckets},
		},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeCluster) setDown(down bool) {
	f.locked(func() { f.down = down })
}

// locked runs fn under the cluster lock so tests can read or change state
// the handler goroutine also touches.
func (f *fakeCluster) locked(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func testConfig(addr, index string) Config {
	return Config{
		Enabled:        true,
		Addresses:      []string{addr},
		Index:          index,
		Replicas:       0,
		RequestTimeout: 2 * time.Second,
		Refresh:        "wait_for",
	}
}

func newTestIndex(t *testing.T) (*fakeCluster, *MoleculeIndex) {
	t.Helper()
	f, srv := newFakeCluster(t, "molecules")
	cfg := testConfig(srv.URL, "molecules")
	c, err := NewClient(context.Background(), cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return f, NewMoleculeIndex(c, cfg, nil)
}

//Personal.AI order the ending
