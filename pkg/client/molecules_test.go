package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	molerrors "github.com/turtacn/molstruct/pkg/errors"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

const waterXYZ = "3\nwater\nO 0 0 0\nH 0.9572 0 0\nH -0.24 0.9266 0\n"

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func writeJSONBody(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestMolecules_Parse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/molecules/parse", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "water.xyz", hdr.Filename)
		assert.Equal(t, waterXYZ, string(data))
		assert.Equal(t, "xyz", r.FormValue("format"))

		writeJSONBody(t, w, http.StatusCreated, mtypes.MoleculeDTO{
			ID: "11111111-1111-1111-1111-111111111111", Format: "xyz",
			StructureDTO: mtypes.StructureDTO{Formula: "H2O", AtomCount: 3},
		})
	})

	dto, err := c.Molecules().Parse(context.Background(), &ParseRequest{Filename: "water.xyz", Data: []byte(waterXYZ), Format: "xyz"})
	require.NoError(t, err)
	assert.Equal(t, "H2O", dto.Formula)
	assert.Equal(t, 3, dto.AtomCount)
}

func TestMolecules_ParseRetriesWithFullBody(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, waterXYZ, string(data))
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSONBody(t, w, http.StatusCreated, mtypes.MoleculeDTO{StructureDTO: mtypes.StructureDTO{Formula: "H2O"}})
	}, WithRetryWait(1, 2))

	dto, err := c.Molecules().Parse(context.Background(), &ParseRequest{Filename: "water.xyz", Data: []byte(waterXYZ)})
	require.NoError(t, err)
	assert.Equal(t, "H2O", dto.Formula)
	assert.Equal(t, 2, calls)
}

func TestMolecules_ParseAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSONBody(t, w, http.StatusBadRequest, map[string]string{
			"code": "MOL_017", "message": "unsupported element", "detail": "Xx",
		})
	})
	_, err := c.Molecules().Parse(context.Background(), &ParseRequest{Filename: "odd.xyz", Data: []byte("1\n\nXx 0 0 0\n")})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "MOL_017", apiErr.Code)
	assert.Equal(t, "Xx", apiErr.Detail)
}

func TestMolecules_ArgumentValidation(t *testing.T) {
	c, err := NewClient("http://api.example.com")
	require.NoError(t, err)
	m := c.Molecules()
	ctx := context.Background()

	_, err = m.Parse(ctx, nil)
	assert.True(t, molerrors.IsCode(err, molerrors.CodeInvalidParam))
	_, err = m.Parse(ctx, &ParseRequest{Filename: "a.xyz"})
	assert.True(t, molerrors.IsCode(err, molerrors.CodeInvalidParam))
	_, err = m.Create(ctx, &mtypes.CreateFromSMILESRequest{})
	assert.Error(t, err)
	_, err = m.Get(ctx, "")
	assert.Error(t, err)
	assert.Error(t, m.Delete(ctx, ""))
	_, err = m.UpdateGeometry(ctx, "", true)
	assert.Error(t, err)
	_, err = m.Distances(ctx, "", nil)
	assert.Error(t, err)
}

func TestMolecules_Create(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/molecules", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req mtypes.CreateFromSMILESRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "CCO", req.SMILES)
		assert.True(t, req.Minimize)
		writeJSONBody(t, w, http.StatusCreated, mtypes.MoleculeDTO{SMILES: req.SMILES, Minimized: true, Source: mtypes.SourceSMILES})
	})
	dto, err := c.Molecules().Create(context.Background(), &mtypes.CreateFromSMILESRequest{SMILES: "CCO", Minimize: true})
	require.NoError(t, err)
	assert.Equal(t, mtypes.SourceSMILES, dto.Source)
	assert.True(t, dto.Minimized)
}

func TestMolecules_GetListDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/molecules/abc":
			writeJSONBody(t, w, http.StatusOK, mtypes.MoleculeDTO{ID: "abc"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/molecules":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "5", r.URL.Query().Get("page_size"))
			writeJSONBody(t, w, http.StatusOK, mtypes.MoleculeListResponse{
				Items: []mtypes.MoleculeDTO{{ID: "abc"}}, Total: 6, Page: 2, PageSize: 5, TotalPages: 2,
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/molecules/abc":
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSONBody(t, w, http.StatusNotFound, map[string]string{"code": "MOL_004", "message": "molecule not found"})
		}
	})
	m := c.Molecules()
	ctx := context.Background()

	dto, err := m.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", dto.ID.String())

	list, err := m.List(ctx, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), list.Total)
	assert.Len(t, list.Items, 1)

	assert.NoError(t, m.Delete(ctx, "abc"))

	_, err = m.Get(ctx, "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
}

func TestMolecules_UpdateGeometryAndDistances(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/molecules/abc/geometry":
			assert.Equal(t, http.MethodPut, r.Method)
			var req mtypes.UpdateGeometryRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			writeJSONBody(t, w, http.StatusOK, mtypes.MoleculeDTO{ID: "abc", Minimized: req.Minimize})
		case "/api/v1/molecules/abc/distances":
			resp := mtypes.DistancesResponse{MoleculeID: "abc", Bonds: []mtypes.BondDistanceDTO{{Atom1: 0, Atom2: 1, Distance: 1.58}}}
			if r.URL.Query().Has("atom1") {
				assert.Equal(t, "0", r.URL.Query().Get("atom1"))
				assert.Equal(t, "2", r.URL.Query().Get("atom2"))
				resp.Pair = &mtypes.BondDistanceDTO{Atom1: 0, Atom2: 2, Distance: 3.16}
			}
			writeJSONBody(t, w, http.StatusOK, resp)
		}
	})
	m := c.Molecules()
	ctx := context.Background()

	dto, err := m.UpdateGeometry(ctx, "abc", true)
	require.NoError(t, err)
	assert.True(t, dto.Minimized)

	d, err := m.Distances(ctx, "abc", nil)
	require.NoError(t, err)
	assert.Len(t, d.Bonds, 1)
	assert.Nil(t, d.Pair)

	d, err = m.Distances(ctx, "abc", &[2]int{0, 2})
	require.NoError(t, err)
	require.NotNil(t, d.Pair)
	assert.InDelta(t, 3.16, d.Pair.Distance, 1e-9)
}

func TestMolecules_Formats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/formats", r.URL.Path)
		writeJSONBody(t, w, http.StatusOK, mtypes.FormatsResponse{Formats: []mtypes.FormatDTO{{Name: "xyz", Extensions: []string{".xyz"}}}})
	})
	resp, err := c.Molecules().Formats(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Formats, 1)
	assert.Equal(t, "xyz", resp.Formats[0].Name)
}

func TestMolecules_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/molecules/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "benzene", q.Get("q"))
		assert.Equal(t, []string{"C", "H"}, q["element"])
		assert.Equal(t, "6", q.Get("min_atoms"))
		assert.False(t, q.Has("max_atoms"))
		assert.False(t, q.Has("source"))

		resp := mtypes.SearchResponse{ElementFacets: map[string]int64{"C": 1, "H": 1}}
		resp.Items = []mtypes.SearchHit{{ID: "m-1", Formula: "C6H6", Score: 3.5}}
		resp.Total = 1
		resp.Page = 1
		resp.PageSize = 20
		writeJSONBody(t, w, http.StatusOK, resp)
	})

	resp, err := c.Molecules().Search(context.Background(), &mtypes.SearchRequest{
		Query: "benzene", Elements: []string{"C", "H"}, MinAtoms: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Total)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3.5, resp.Items[0].Score)
	assert.Equal(t, int64(1), resp.ElementFacets["C"])
}

func TestMolecules_SearchDisabled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		writeJSONBody(t, w, http.StatusServiceUnavailable, map[string]string{
			"code": "COMMON_008", "message": "molecule search is not enabled",
		})
	}, WithRetryMax(0))

	_, err := c.Molecules().Search(context.Background(), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "COMMON_008", apiErr.Code)
}

//Personal.AI order the ending
