package server

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taxmate/internal/ingest"
	"github.com/smallbiznis/taxmate/internal/invoiceparse"
)

const (
	maxUploadBytes  = 10 << 20
	maxInvoiceFiles = 20
)

type insertCSVRequest struct {
	Records []ingest.RecordInput `json:"records"`
}

func (s *Server) PreviewCSV(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, newValidationError("file", "missing_file", "file is required"))
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		AbortWithError(c, ingest.ErrUnsupportedFile)
		return
	}

	f, err := header.Open()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	defer f.Close()

	preview, err := s.ingestSvc.Preview(c.Request.Context(), userID, f)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("ingest_rows", preview.ParsedRows)
	c.JSON(http.StatusOK, preview)
}

func (s *Server) InsertCSV(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req insertCSVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	c.Set("ingest_rows", len(req.Records))
	job, err := s.ingestSvc.Submit(c.Request.Context(), userID, req.Records)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (s *Server) UploadInvoices(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		AbortWithError(c, ingest.ErrEmptyBatch)
		return
	}
	if len(headers) > maxInvoiceFiles {
		AbortWithError(c, newValidationError("files", "too_many_files", "at most 20 files per upload"))
		return
	}

	files := make([]invoiceparse.File, 0, len(headers))
	for _, h := range headers {
		file, err := readUpload(h)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		files = append(files, file)
	}

	resp, err := s.ingestSvc.IngestInvoices(c.Request.Context(), userID, files)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func readUpload(h *multipart.FileHeader) (invoiceparse.File, error) {
	f, err := h.Open()
	if err != nil {
		return invoiceparse.File{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return invoiceparse.File{}, err
	}
	return invoiceparse.File{
		Name:        h.Filename,
		ContentType: h.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
