package opensearch

import (
	"encoding/json"
	"io"

	"github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// elementFacetSize bounds the element aggregation; the periodic table caps
// the useful size well below this.
const elementFacetSize = 128

// searchFields are matched by free-text queries, name boosted.
var searchFields = []string{"name^3", "formula^2", "filename", "smiles", "id"}

// buildSearchBody renders the query DSL for req.
func buildSearchBody(req *mtypes.SearchRequest, p common.Pagination) map[string]interface{} {
	var must interface{} = map[string]interface{}{"match_all": map[string]interface{}{}}
	if req.Query != "" {
		must = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":    req.Query,
				"fields":   searchFields,
				"type":     "best_fields",
				"operator": "and",
				"lenient":  true,
			},
		}
	}

	filters := make([]interface{}, 0, 4+len(req.Elements))
	term := func(field, value string) {
		if value != "" {
			filters = append(filters, map[string]interface{}{"term": map[string]interface{}{field: value}})
		}
	}
	term("formula", req.Formula)
	term("format", req.Format)
	term("source", string(req.Source))
	for _, el := range req.Elements {
		term("elements", el)
	}
	if req.MinAtoms > 0 || req.MaxAtoms > 0 {
		rng := map[string]interface{}{}
		if req.MinAtoms > 0 {
			rng["gte"] = req.MinAtoms
		}
		if req.MaxAtoms > 0 {
			rng["lte"] = req.MaxAtoms
		}
		filters = append(filters, map[string]interface{}{"range": map[string]interface{}{"atom_count": rng}})
	}

	sorts := []interface{}{map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}}}
	if req.Query != "" {
		sorts = append([]interface{}{"_score"}, sorts...)
	}

	return map[string]interface{}{
		"from":             p.Offset(),
		"size":             p.PageSize,
		"track_total_hits": true,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filters,
			},
		},
		"sort": sorts,
		"aggs": map[string]interface{}{
			"elements": map[string]interface{}{
				"terms": map[string]interface{}{"field": "elements", "size": elementFacetSize},
			},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  *float64 `json:"_score"`
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Elements struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"elements"`
	} `json:"aggregations"`
}

func parseSearchResponse(body io.Reader, p common.Pagination) (*mtypes.SearchResponse, error) {
	var raw searchResponse
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode search response")
	}

	hits := make([]mtypes.SearchHit, 0, len(raw.Hits.Hits))
	for _, h := range raw.Hits.Hits {
		var score float64
		if h.Score != nil {
			score = *h.Score
		}
		hits = append(hits, h.Source.hit(score))
	}

	out := &mtypes.SearchResponse{PageResponse: common.NewPageResponse(hits, raw.Hits.Total.Value, p)}
	if buckets := raw.Aggregations.Elements.Buckets; len(buckets) > 0 {
		out.ElementFacets = make(map[string]int64, len(buckets))
		for _, b := range buckets {
			out.ElementFacets[b.Key] = b.DocCount
		}
	}
	return out, nil
}

//Personal.AI order the ending
