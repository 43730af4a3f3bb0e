package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/cvalchemist/internal/llm"
	"github.com/mesh-intelligence/cvalchemist/internal/payments"
	"github.com/mesh-intelligence/cvalchemist/internal/render"
	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

// Response bodies and headers.
const (
	indexFile          = "index.html"
	indexMissingHTML   = `<h1>Error: index.html not found</h1><p><a href="/">Go to Homepage</a></p>`
	noCache            = "no-cache, no-store, must-revalidate"
	contentTypePDF     = "application/pdf"
	contentTypeDOCX    = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	msgResultNotFound  = "Result not found or expired."
	msgUnsupportedType = "Unsupported file type. Please upload a PDF or DOCX."
	msgNotConfigured   = "Payment processor is not configured."
)

type rewriteRequest struct {
	JobTitle *string `json:"job_title"`
	Text     string  `json:"text"`
}

type checkoutRequest struct {
	OriginURL string `json:"origin_url"`
}

type downloadRequest struct {
	Text *string `json:"text"`
}

// handleIndex serves the single-page front end.
func (s *Server) handleIndex(c *gin.Context) {
	path := filepath.Join(s.deps.AppDir, indexFile)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(indexMissingHTML))
		return
	}
	c.Header("Cache-Control", noCache)
	c.File(path)
}

// handleResult returns a cached analysis.
func (s *Server) handleResult(c *gin.Context) {
	a, err := s.deps.Store.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrInvalidID):
		detail(c, http.StatusNotFound, msgResultNotFound)
		return
	case err != nil:
		_ = c.Error(err)
		detail(c, http.StatusInternalServerError, fmt.Sprintf("Could not load result: %v", err))
		return
	}
	c.JSON(http.StatusOK, a)
}

// handleAnalyze extracts the uploaded résumé, scores it and caches the result.
func (s *Server) handleAnalyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.deps.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			detail(c, http.StatusRequestEntityTooLarge, "File too large.")
			return
		}
		detail(c, http.StatusUnprocessableEntity, "Field required: file")
		return
	}
	jobTitle := c.PostForm("job_title")

	kind, err := types.KindFromFilename(header.Filename)
	if err != nil {
		detail(c, http.StatusBadRequest, msgUnsupportedType)
		return
	}

	analysis, err := s.analyzeUpload(c, header, kind, jobTitle)
	if err != nil {
		_ = c.Error(err)
		s.deps.Logger.Error("failed to analyze file", zap.String("filename", header.Filename), zap.Error(err))
		detail(c, http.StatusInternalServerError, fmt.Sprintf("An error occurred during analysis: %v", err))
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) analyzeUpload(c *gin.Context, header *multipart.FileHeader, kind types.DocumentKind, jobTitle string) (*types.Analysis, error) {
	path, err := saveTemp(header, kind)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	text, err := s.deps.Extract(path, kind)
	if err != nil {
		return nil, err
	}

	ctx := c.Request.Context()
	analysis, err := s.deps.Analyzer.Analyze(ctx, jobTitle, text)
	if err != nil {
		return nil, err
	}
	id, err := s.deps.Store.Put(ctx, analysis)
	if err != nil {
		return nil, err
	}
	analysis.ResultID = id
	return analysis, nil
}

// saveTemp copies the upload to a temporary file with the original extension.
func saveTemp(header *multipart.FileHeader, kind types.DocumentKind) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "cvalchemist-*"+kind.Ext())
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("save upload: %w", err)
	}
	return dst.Name(), nil
}

// handleRewrite returns an optimized résumé. Model failures are reported
// inside a 200 response.
func (s *Server) handleRewrite(c *gin.Context) {
	var req rewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	title := llm.DefaultRewriteTitle
	if req.JobTitle != nil {
		title = *req.JobTitle
	}

	text, err := s.deps.Analyzer.Rewrite(c.Request.Context(), title, req.Text)
	if err != nil {
		_ = c.Error(err)
		s.deps.Logger.Error("error during rewrite", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"optimized_text": fmt.Sprintf("Error: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"optimized_text": text})
}

// handleCheckout creates a Stripe checkout session.
func (s *Server) handleCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	url, err := s.deps.Checkout.CreateSession(c.Request.Context(), req.OriginURL)
	switch {
	case errors.Is(err, payments.ErrNotConfigured):
		s.deps.Logger.Error("stripe api key is not configured")
		detail(c, http.StatusInternalServerError, msgNotConfigured)
		return
	case err != nil:
		_ = c.Error(err)
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) handleDownloadPDF(c *gin.Context) {
	s.download(c, "resume.pdf", contentTypePDF, render.PDF)
}

func (s *Server) handleDownloadDOCX(c *gin.Context) {
	s.download(c, "resume.docx", contentTypeDOCX, render.DOCX)
}

// download renders the request text and serves it as an attachment.
func (s *Server) download(c *gin.Context, filename, contentType string, renderFn func(io.Writer, string) error) {
	var req downloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Text == nil {
		detail(c, http.StatusUnprocessableEntity, "Field required: text")
		return
	}

	var buf bytes.Buffer
	if err := renderFn(&buf, *req.Text); err != nil {
		_ = c.Error(err)
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// handleHealth answers orchestration probes.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "worker": s.deps.WorkerID})
}
