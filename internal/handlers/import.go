package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/logger"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/middleware"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/pipeline"
)

// MaxUploadSize bounds a single statement upload.
const MaxUploadSize = 32 << 20

// Importer runs one statement import. *pipeline.Service satisfies it.
type Importer interface {
	Import(ctx context.Context, req pipeline.Request) (*domain.ImportResult, error)
}

// ImportHandler handles statement uploads
type ImportHandler struct {
	importer Importer
}

// NewImportHandler creates a new import handler
func NewImportHandler(importer Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// Import handles POST /api/import.
//
// The statement is either a multipart "file" part with an "accountId" form field, or the raw
// request body with "accountId" and "filename" query parameters.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	req, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = userID

	result, err := h.importer.Import(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, r, http.StatusForbidden, "account not accessible")
			return
		}
		if r.Context().Err() != nil {
			return
		}
		logFor(r).Error().Err(err).Str("account_id", req.AccountID).Msg("import failed")
		writeError(w, r, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func readUpload(r *http.Request) (pipeline.Request, error) {
	var req pipeline.Request
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
			return req, err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return req, errors.New("missing file part")
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return req, err
		}
		req.AccountID = r.FormValue("accountId")
		req.Filename = header.Filename
		req.Content = content
	} else {
		content, err := io.ReadAll(r.Body)
		if err != nil {
			return req, err
		}
		query := r.URL.Query()
		req.AccountID = query.Get("accountId")
		req.Filename = query.Get("filename")
		req.Content = content
	}

	switch {
	case req.AccountID == "":
		return req, errors.New("accountId is required")
	case req.Filename == "":
		return req, errors.New("filename is required")
	case len(req.Content) == 0:
		return req, errors.New("empty upload")
	}
	return req, nil
}

func logFor(r *http.Request) *zerolog.Logger {
	log := logger.FromContext(r.Context())
	return &log
}
