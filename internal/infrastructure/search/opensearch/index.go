package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// document is the indexed projection of a molecule.
type document struct {
	ID              string    `json:"id"`
	Name            string    `json:"name,omitempty"`
	Formula         string    `json:"formula"`
	Elements        []string  `json:"elements"`
	AtomCount       int       `json:"atom_count"`
	BondCount       int       `json:"bond_count"`
	MolecularWeight float64   `json:"molecular_weight"`
	Format          string    `json:"format,omitempty"`
	Filename        string    `json:"filename,omitempty"`
	SMILES          string    `json:"smiles,omitempty"`
	Source          string    `json:"source"`
	Engine          string    `json:"engine,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newDocument(m *mtypes.MoleculeDTO) document {
	d := document{
		ID:              m.ID.String(),
		Formula:         m.Formula,
		Elements:        elementsOf(m.Atoms),
		AtomCount:       m.AtomCount,
		BondCount:       len(m.Bonds),
		MolecularWeight: m.MolecularWeight,
		Format:          m.Format,
		Filename:        m.Filename,
		SMILES:          m.SMILES,
		Source:          string(m.Source),
		Engine:          m.Engine,
		CreatedAt:       time.Time(m.CreatedAt).UTC(),
		UpdatedAt:       time.Time(m.UpdatedAt).UTC(),
	}
	if m.Name != nil {
		d.Name = *m.Name
	}
	return d
}

func (d document) hit(score float64) mtypes.SearchHit {
	return mtypes.SearchHit{
		ID:              common.ID(d.ID),
		Name:            d.Name,
		Formula:         d.Formula,
		Elements:        d.Elements,
		AtomCount:       d.AtomCount,
		BondCount:       d.BondCount,
		MolecularWeight: d.MolecularWeight,
		Format:          d.Format,
		Source:          mtypes.Source(d.Source),
		Engine:          d.Engine,
		CreatedAt:       common.Timestamp(d.CreatedAt),
		Score:           score,
	}
}

// elementsOf returns the distinct element symbols, sorted.
func elementsOf(atoms []mtypes.AtomDTO) []string {
	seen := make(map[string]struct{}, 8)
	out := make([]string, 0, 8)
	for _, a := range atoms {
		if _, ok := seen[a.Symbol]; ok {
			continue
		}
		seen[a.Symbol] = struct{}{}
		out = append(out, a.Symbol)
	}
	sort.Strings(out)
	return out
}

// moleculeMapping is the index body used when the index is missing.
func moleculeMapping(shards, replicas int) map[string]interface{} {
	keyword := map[string]interface{}{"type": "keyword"}
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   shards,
			"number_of_replicas": replicas,
		},
		"mappings": map[string]interface{}{
			"dynamic": "strict",
			"properties": map[string]interface{}{
				"id": keyword,
				"name": map[string]interface{}{
					"type":   "text",
					"fields": map[string]interface{}{"raw": keyword},
				},
				"formula":          keyword,
				"elements":         keyword,
				"atom_count":       map[string]interface{}{"type": "integer"},
				"bond_count":       map[string]interface{}{"type": "integer"},
				"molecular_weight": map[string]interface{}{"type": "float"},
				"format":           keyword,
				"filename":         map[string]interface{}{"type": "text"},
				"smiles":           keyword,
				"source":           keyword,
				"engine":           keyword,
				"created_at":       map[string]interface{}{"type": "date"},
				"updated_at":       map[string]interface{}{"type": "date"},
			},
		},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// MoleculeIndex
// ─────────────────────────────────────────────────────────────────────────────

// MoleculeIndex keeps one document per stored molecule.
type MoleculeIndex struct {
	client   *Client
	name     string
	refresh  string
	shards   int
	replicas int
	logger   logging.Logger
}

// NewMoleculeIndex binds the index named in cfg.
func NewMoleculeIndex(client *Client, cfg Config, logger logging.Logger) *MoleculeIndex {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	shards := cfg.Shards
	if shards < 1 {
		shards = 1
	}
	return &MoleculeIndex{
		client:   client,
		name:     cfg.Index,
		refresh:  cfg.Refresh,
		shards:   shards,
		replicas: cfg.Replicas,
		logger:   logger,
	}
}

// Name returns the index name.
func (ix *MoleculeIndex) Name() string { return ix.name }

// Ensure creates the index with the molecule mapping if it does not exist.
func (ix *MoleculeIndex) Ensure(ctx context.Context) error {
	resp, err := ix.client.do(ctx, opensearchapi.IndicesExistsRequest{Index: []string{ix.name}})
	if err != nil {
		return err
	}
	status := resp.StatusCode
	drain(resp)
	switch {
	case status == http.StatusOK:
		return nil
	case status != http.StatusNotFound:
		return errors.New(errors.ErrCodeExternalService, "failed to check search index").WithDetail(http.StatusText(status))
	}

	body, err := json.Marshal(moleculeMapping(ix.shards, ix.replicas))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode index mapping")
	}
	resp, err = ix.client.do(ctx, opensearchapi.IndicesCreateRequest{Index: ix.name, Body: bytes.NewReader(body)})
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.IsError() {
		// Another replica may have created it between the two calls.
		if resp.StatusCode == http.StatusBadRequest && errorType(resp) == "resource_already_exists_exception" {
			return nil
		}
		return responseError(resp, "failed to create search index")
	}
	ix.logger.Info("search index created", logging.String("index", ix.name))
	return nil
}

// Index writes or replaces the molecule's document.
func (ix *MoleculeIndex) Index(ctx context.Context, m *mtypes.MoleculeDTO) error {
	if m == nil || m.ID == "" {
		return errors.InvalidParam("molecule id is required")
	}
	body, err := json.Marshal(newDocument(m))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode search document")
	}
	resp, err := ix.client.do(ctx, opensearchapi.IndexRequest{
		Index:      ix.name,
		DocumentID: m.ID.String(),
		Body:       bytes.NewReader(body),
		Refresh:    ix.refresh,
	})
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.IsError() {
		return responseError(resp, "failed to index molecule")
	}
	return nil
}

// Remove deletes the molecule's document.  A missing document is not an error.
func (ix *MoleculeIndex) Remove(ctx context.Context, id common.ID) error {
	resp, err := ix.client.do(ctx, opensearchapi.DeleteRequest{
		Index:      ix.name,
		DocumentID: id.String(),
		Refresh:    ix.refresh,
	})
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.IsError() {
		return responseError(resp, "failed to remove molecule from index")
	}
	return nil
}

// Search runs req against the index.  The caller normalizes req.
func (ix *MoleculeIndex) Search(ctx context.Context, req *mtypes.SearchRequest) (*mtypes.SearchResponse, error) {
	p := common.Pagination{Page: req.Page, PageSize: req.PageSize}.Normalize()
	body, err := json.Marshal(buildSearchBody(req, p))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode search query")
	}

	start := time.Now()
	resp, err := ix.client.do(ctx, opensearchapi.SearchRequest{Index: []string{ix.name}, Body: bytes.NewReader(body)})
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.IsError() {
		return nil, responseError(resp, "molecule search failed")
	}

	out, err := parseSearchResponse(resp.Body, p)
	if err != nil {
		return nil, err
	}
	ix.logger.Debug("molecule search",
		logging.String("index", ix.name),
		logging.Int64("hits", out.Total),
		logging.Duration("took", time.Since(start)))
	return out, nil
}

//Personal.AI order the ending
