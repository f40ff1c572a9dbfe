package handlers

import (
	"net/http"

	"github.com/turtacn/molstruct/internal/domain/molecule/parser"
	mtypes "github.com/turtacn/molstruct/pkg/types/molecule"
)

// FormatHandler serves the list of accepted input formats.
type FormatHandler struct{}

func NewFormatHandler() *FormatHandler { return &FormatHandler{} }

// List handles GET /api/v1/formats.
func (h *FormatHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SupportedFormats())
}

// SupportedFormats describes every parser.Format.
func SupportedFormats() mtypes.FormatsResponse {
	resp := mtypes.FormatsResponse{}
	for _, f := range parser.Supported() {
		resp.Formats = append(resp.Formats, mtypes.FormatDTO{
			Name:        f.String(),
			Extensions:  []string{f.Extension()},
			Description: f.Description(),
		})
	}
	return resp
}

//Personal.AI order the ending
