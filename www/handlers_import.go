package www

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/importer"
)

type importTextRequest struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

type importCommitRequest struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

type importErrorResponse struct {
	Error  string                     `json:"error"`
	Issues []importer.ValidationIssue `json:"issues,omitempty"`
}

// apiImportPreview parses an uploaded workbook or pasted text and opens an
// import session. Nothing is written yet.
func (h *Handlers) apiImportPreview(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.engine.AppConfig().Import.MaxUploadBytes
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	var (
		source string
		rows   [][]string
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, hdr, ferr := r.FormFile("file")
		if ferr != nil {
			writeError(w, http.StatusBadRequest, "missing file: "+ferr.Error())
			return
		}
		defer file.Close()
		source = hdr.Filename
		rows, err = importer.ReadFile(hdr.Filename, file)
	} else {
		var req importTextRequest
		if derr := decodeJSON(r, &req); derr != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		source = req.Source
		if source == "" {
			source = "paste"
		}
		rows, err = importer.ReadDelimited(req.Text)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	preview, err := h.engine.Importer().Preview(r.Context(), source, h.getUsername(r), rows)
	if err != nil {
		resp := importErrorResponse{Error: err.Error()}
		var verrs importer.ValidationErrors
		if errors.As(err, &verrs) {
			resp.Issues = verrs
		}
		writeJSONStatus(w, errorStatus(err), resp)
		return
	}
	writeJSON(w, preview)
}

// apiImportCommit writes a previewed session. A failure after some chunks
// committed answers 207 with the report.
func (h *Handlers) apiImportCommit(w http.ResponseWriter, r *http.Request) {
	var req importCommitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := importer.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.engine.Importer().Commit(r.Context(), req.SessionID, mode)
	if err != nil {
		var cerr *importer.CommitError
		switch {
		case errors.As(err, &cerr) && report != nil && report.Result.CommittedRows > 0:
			writeJSONStatus(w, http.StatusMultiStatus, report)
		case report != nil:
			writeJSONStatus(w, http.StatusInternalServerError, report)
		default:
			writeError(w, errorStatus(err), err.Error())
		}
		return
	}
	writeJSON(w, report)
}

func (h *Handlers) apiImportSession(w http.ResponseWriter, r *http.Request) {
	preview, err := h.engine.Importer().Session(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, preview)
}

func (h *Handlers) apiImportLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.engine.DB().ListImportLog(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, entries)
}
