package handler

import (
	"OceanBooks/internal/dto"
	"OceanBooks/internal/logger"
	"OceanBooks/internal/service"
	"OceanBooks/utils"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	neturl "net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	svc            *service.CatalogService
	log            *zap.Logger
	maxUploadBytes int64
}

func New(svc *service.CatalogService, log *zap.Logger, maxUploadBytes int64) *Handler {
	if log == nil {
		log = logger.L()
	}
	return &Handler{svc: svc, log: log, maxUploadBytes: maxUploadBytes}
}

// Index reports that the API is up.
func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "OceanBooks API is running!"})
}

// Health pings the catalog database.
func (h *Handler) Health(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		h.log.Error("health check failed", zap.Error(err))
		utils.Fail(c, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListBooks returns all book summaries.
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.svc.ListBooks(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

// GetBook returns a single book record.
func (h *Handler) GetBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	book, err := h.svc.GetBook(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// UploadBook accepts the multipart upload form.
func (h *Handler) UploadBook(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	in := service.UploadInput{
		Title:       c.PostForm("title"),
		Author:      c.PostForm("author"),
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
	}
	var tooLarge *http.MaxBytesError
	bookFile, bookHeader, err := c.Request.FormFile("book_file")
	if errors.As(err, &tooLarge) {
		utils.Fail(c, http.StatusRequestEntityTooLarge, "Upload too large")
		return
	}
	if err == nil {
		defer bookFile.Close()
		in.Book = attachment(bookHeader, bookFile)
	}
	thumbFile, thumbHeader, err := c.Request.FormFile("thumbnail")
	if err == nil {
		defer thumbFile.Close()
		in.Thumbnail = attachment(thumbHeader, thumbFile)
	}

	if _, err := h.svc.UploadBook(c.Request.Context(), in); err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "Book uploaded successfully!")
}

func attachment(header *multipart.FileHeader, file multipart.File) *service.Attachment {
	return &service.Attachment{Filename: header.Filename, Content: file}
}

// DownloadBook streams the book file as an attachment.
func (h *Handler) DownloadBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	dl, err := h.svc.DownloadBook(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer dl.Body.Close()

	name := utils.SanitizeHeaderFilename(dl.FileName)
	c.Header("Content-Type", dl.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s",
		utils.ASCIIFilename(name), neturl.PathEscape(name)))
	if dl.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(dl.Size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, dl.Body); err != nil {
		h.log.Warn("stream book failed", zap.Uint64("id", id), zap.Error(err))
	}
}

// UpdateBook overwrites title, author and category.
func (h *Handler) UpdateBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req dto.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	err := h.svc.UpdateBook(c.Request.Context(), id, service.UpdateInput{
		Title:    req.Title,
		Author:   req.Author,
		Category: req.Category,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "")
}

// DeleteBook removes a book record.
func (h *Handler) DeleteBook(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteBook(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, "")
}

// Thumbnail serves a stored cover image.
func (h *Handler) Thumbnail(c *gin.Context) {
	dl, err := h.svc.OpenThumbnail(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer dl.Body.Close()
	c.DataFromReader(http.StatusOK, dl.Size, dl.ContentType, dl.Body, nil)
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.Fail(c, http.StatusBadRequest, "invalid book id")
		return 0, false
	}
	return id, true
}

// fail maps service error kinds to HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	var svcErr *service.Error
	msg := "Internal server error"
	if errors.As(err, &svcErr) {
		msg = svcErr.Msg
	}
	switch {
	case errors.Is(err, service.ErrValidation):
		utils.Fail(c, http.StatusBadRequest, msg)
	case errors.Is(err, service.ErrNotFound):
		utils.Fail(c, http.StatusNotFound, msg)
	case errors.Is(err, service.ErrUnauthorized):
		utils.Fail(c, http.StatusUnauthorized, msg)
	default:
		h.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		utils.Fail(c, http.StatusInternalServerError, err.Error())
	}
}
