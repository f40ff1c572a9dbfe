package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/turtacn/molstruct/internal/application/molecule"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// multipartOverhead is the allowance for multipart framing on top of the
// configured upload size.
const multipartOverhead = 64 << 10

// MoleculeHandler serves /api/v1/molecules.
type MoleculeHandler struct {
	svc            molecule.Service
	validate       *validator.Validate
	logger         logging.Logger
	maxUploadBytes int64
}

// NewMoleculeHandler creates a MoleculeHandler.  maxUploadBytes bounds the
// multipart body; the service enforces the exact file size limit.
func NewMoleculeHandler(svc molecule.Service, logger logging.Logger, maxUploadBytes int64) *MoleculeHandler {
	return &MoleculeHandler{
		svc:            svc,
		validate:       validator.New(),
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// Parse handles POST /api/v1/molecules/parse with a multipart "file" field
// and an optional "format" field.
func (h *MoleculeHandler) Parse(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			WriteError(w, errors.New(errors.ErrCodePayloadTooLarge, "upload exceeds size limit").
				WithDetail(strconv.FormatInt(h.maxUploadBytes, 10)+" bytes"))
			return
		}
		WriteError(w, errors.New(errors.ErrCodeBadRequest, "expected multipart/form-data body").WithDetail(err.Error()))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, errors.New(errors.ErrCodeBadRequest, "No file provided"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read upload"))
		return
	}

	dto, err := h.svc.ParseUpload(r.Context(), &molecule.ParseUploadInput{
		Filename: header.Filename,
		Data:     data,
		Format:   r.FormValue("format"),
	})
	if err != nil {
		logFailure(h.logger, r, "parse upload failed", err)
		WriteError(w, err)
		return
	}

	h.logger.Info("structure parsed",
		logging.String(logging.FieldMoleculeID, dto.ID.String()),
		logging.String(logging.FieldFormat, dto.Format),
		logging.String(logging.FieldEngine, dto.Engine),
		logging.Int("atoms", dto.AtomCount),
		logging.Duration("took", time.Since(start)),
	)
	writeJSON(w, http.StatusCreated, dto)
}

// Create handles POST /api/v1/molecules with a SMILES body.
func (h *MoleculeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req mtypes.CreateFromSMILESRequest
	if err := decodeAndValidate(w, r, h.validate, &req); err != nil {
		WriteError(w, err)
		return
	}

	dto, err := h.svc.CreateFromSMILES(r.Context(), &molecule.CreateFromSMILESInput{
		SMILES:   req.SMILES,
		Name:     req.Name,
		Minimize: req.Minimize,
	})
	if err != nil {
		logFailure(h.logger, r, "create molecule failed", err)
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// List handles GET /api/v1/molecules.
func (h *MoleculeHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	resp, err := h.svc.List(r.Context(), page, pageSize)
	if err != nil {
		logFailure(h.logger, r, "list molecules failed", err)
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Search handles GET /api/v1/molecules/search.  Parameters: q, formula,
// element (repeatable or comma separated), format, source, min_atoms,
// max_atoms, page and page_size.
func (h *MoleculeHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequestFromQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, errors.New(errors.ErrCodeValidation, "request validation failed").WithDetail(formatValidationError(err)))
		return
	}

	resp, err := h.svc.Search(r.Context(), req)
	if err != nil {
		logFailure(h.logger, r, "molecule search failed", err)
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func searchRequestFromQuery(r *http.Request) (*mtypes.SearchRequest, error) {
	q := r.URL.Query()
	page, pageSize := parsePagination(r)
	req := &mtypes.SearchRequest{
		Query:    q.Get("q"),
		Formula:  q.Get("formula"),
		Format:   q.Get("format"),
		Source:   mtypes.Source(q.Get("source")),
		Page:     page,
		PageSize: pageSize,
	}
	for _, v := range q["element"] {
		for _, el := range strings.Split(v, ",") {
			if el = strings.TrimSpace(el); el != "" {
				req.Elements = append(req.Elements, el)
			}
		}
	}
	for name, dst := range map[string]*int{"min_atoms": &req.MinAtoms, "max_atoms": &req.MaxAtoms} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.InvalidParam(name + " must be an integer").WithDetail(v)
		}
		*dst = n
	}
	return req, nil
}

// Get handles GET /api/v1/molecules/{moleculeID}.
func (h *MoleculeHandler) Get(w http.ResponseWriter, r *http.Request) {
	dto, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "moleculeID"))
	if err != nil {
		logFailure(h.logger, r, "get molecule failed", err)
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// Delete handles DELETE /api/v1/molecules/{moleculeID}.
func (h *MoleculeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "moleculeID")); err != nil {
		logFailure(h.logger, r, "delete molecule failed", err)
		WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateGeometry handles PUT /api/v1/molecules/{moleculeID}/geometry.
func (h *MoleculeHandler) UpdateGeometry(w http.ResponseWriter, r *http.Request) {
	var req mtypes.UpdateGeometryRequest
	if err := decodeAndValidate(w, r, h.validate, &req); err != nil {
		WriteError(w, err)
		return
	}
	dto, err := h.svc.UpdateGeometry(r.Context(), chi.URLParam(r, "moleculeID"), req.Minimize)
	if err != nil {
		logFailure(h.logger, r, "update geometry failed", err)
		WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// Distances handles GET /api/v1/molecules/{moleculeID}/distances.  With
// atom1 and atom2 query parameters the response also carries that pair.
func (h *MoleculeHandler) Distances(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "moleculeID")
	q := r.URL.Query()

	var a1, a2 int
	pair := q.Has("atom1") || q.Has("atom2")
	if pair {
		var err1, err2 error
		a1, err1 = strconv.Atoi(q.Get("atom1"))
		a2, err2 = strconv.Atoi(q.Get("atom2"))
		if err1 != nil || err2 != nil {
			WriteError(w, errors.InvalidParam("atom1 and atom2 must both be integers"))
			return
		}
	}

	resp, err := h.svc.BondDistances(r.Context(), id)
	if err != nil {
		logFailure(h.logger, r, "bond distances failed", err)
		WriteError(w, err)
		return
	}
	if pair {
		d, err := h.svc.AtomDistance(r.Context(), id, a1, a2)
		if err != nil {
			logFailure(h.logger, r, "atom distance failed", err)
			WriteError(w, err)
			return
		}
		resp.Pair = d
	}
	writeJSON(w, http.StatusOK, resp)
}

//Personal.AI order the ending
