package client

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/turtacn/molstruct/pkg/errors"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// MoleculesClient calls /api/v1/molecules and /api/v1/formats.
type MoleculesClient struct {
	client *Client
}

func invalidArg(msg string) error {
	return errors.InvalidParam(msg)
}

// ParseRequest is one structure file to upload.
type ParseRequest struct {
	Filename string
	Data     []byte
	// Format overrides the extension-derived format when set.
	Format string
}

// Parse uploads a structure file.
// POST /api/v1/molecules/parse
func (mc *MoleculesClient) Parse(ctx context.Context, req *ParseRequest) (*mtypes.MoleculeDTO, error) {
	if req == nil || req.Filename == "" {
		return nil, invalidArg("filename is required")
	}
	if len(req.Data) == 0 {
		return nil, invalidArg("data is empty")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := fw.Write(req.Data); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if req.Format != "" {
		if err := mw.WriteField("format", req.Format); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	payload := buf.Bytes()

	var dto mtypes.MoleculeDTO
	err = mc.client.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/v1/molecules/parse",
		contentType: mw.FormDataContentType(),
		body:        func() ([]byte, error) { return payload, nil },
	}, &dto)
	if err != nil {
		return nil, err
	}
	return &dto, nil
}

// Create builds a molecule from a SMILES-like string.
// POST /api/v1/molecules
func (mc *MoleculesClient) Create(ctx context.Context, req *mtypes.CreateFromSMILESRequest) (*mtypes.MoleculeDTO, error) {
	if req == nil || req.SMILES == "" {
		return nil, invalidArg("smiles is required")
	}
	var dto mtypes.MoleculeDTO
	if err := mc.client.post(ctx, "/api/v1/molecules", req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// Get retrieves a molecule by its ID.
// GET /api/v1/molecules/{moleculeID}
func (mc *MoleculesClient) Get(ctx context.Context, moleculeID string) (*mtypes.MoleculeDTO, error) {
	if moleculeID == "" {
		return nil, invalidArg("moleculeID is required")
	}
	var dto mtypes.MoleculeDTO
	if err := mc.client.get(ctx, "/api/v1/molecules/"+url.PathEscape(moleculeID), &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// List returns one page of stored molecules, newest first.
// GET /api/v1/molecules?page={page}&page_size={pageSize}
func (mc *MoleculesClient) List(ctx context.Context, page, pageSize int) (*mtypes.MoleculeListResponse, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	path := "/api/v1/molecules"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp mtypes.MoleculeListResponse
	if err := mc.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search queries the server's molecule index.
// GET /api/v1/molecules/search
func (mc *MoleculesClient) Search(ctx context.Context, req *mtypes.SearchRequest) (*mtypes.SearchResponse, error) {
	q := url.Values{}
	if req != nil {
		setNonEmpty(q, "q", req.Query)
		setNonEmpty(q, "formula", req.Formula)
		setNonEmpty(q, "format", req.Format)
		setNonEmpty(q, "source", string(req.Source))
		for _, el := range req.Elements {
			q.Add("element", el)
		}
		setPositive(q, "min_atoms", req.MinAtoms)
		setPositive(q, "max_atoms", req.MaxAtoms)
		setPositive(q, "page", req.Page)
		setPositive(q, "page_size", req.PageSize)
	}
	path := "/api/v1/molecules/search"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp mtypes.SearchResponse
	if err := mc.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func setNonEmpty(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func setPositive(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

// Delete removes a molecule.
// DELETE /api/v1/molecules/{moleculeID}
func (mc *MoleculesClient) Delete(ctx context.Context, moleculeID string) error {
	if moleculeID == "" {
		return invalidArg("moleculeID is required")
	}
	return mc.client.delete(ctx, "/api/v1/molecules/"+url.PathEscape(moleculeID))
}

// UpdateGeometry regenerates the layout of a SMILES-sourced molecule.
// PUT /api/v1/molecules/{moleculeID}/geometry
func (mc *MoleculesClient) UpdateGeometry(ctx context.Context, moleculeID string, minimize bool) (*mtypes.MoleculeDTO, error) {
	if moleculeID == "" {
		return nil, invalidArg("moleculeID is required")
	}
	var dto mtypes.MoleculeDTO
	body := &mtypes.UpdateGeometryRequest{Minimize: minimize}
	if err := mc.client.put(ctx, "/api/v1/molecules/"+url.PathEscape(moleculeID)+"/geometry", body, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// Distances returns every bond length.  When pair is non-nil the response
// also carries the distance between those two atoms.
// GET /api/v1/molecules/{moleculeID}/distances
func (mc *MoleculesClient) Distances(ctx context.Context, moleculeID string, pair *[2]int) (*mtypes.DistancesResponse, error) {
	if moleculeID == "" {
		return nil, invalidArg("moleculeID is required")
	}
	path := "/api/v1/molecules/" + url.PathEscape(moleculeID) + "/distances"
	if pair != nil {
		q := url.Values{}
		q.Set("atom1", strconv.Itoa(pair[0]))
		q.Set("atom2", strconv.Itoa(pair[1]))
		path += "?" + q.Encode()
	}
	var resp mtypes.DistancesResponse
	if err := mc.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Formats lists the structure formats the server accepts.
// GET /api/v1/formats
func (mc *MoleculesClient) Formats(ctx context.Context) (*mtypes.FormatsResponse, error) {
	var resp mtypes.FormatsResponse
	if err := mc.client.get(ctx, "/api/v1/formats", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

//Personal.AI order the ending
