package service

import (
	"OceanBooks/internal/dto"
	"OceanBooks/internal/repo"
	"OceanBooks/internal/storage"
	"OceanBooks/model"
	"OceanBooks/utils"
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCacheTTL = 30 * time.Second

// ThumbnailRoute is the public prefix thumbnails are served under.
const ThumbnailRoute = "/api/thumbnails/"

var allowedBookExts = map[string]struct{}{
	".pdf":  {},
	".epub": {},
	".doc":  {},
	".docx": {},
}

var allowedImageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// CleanupPublisher hands the blobs of a deleted book to the cleanup pipeline.
type CleanupPublisher interface {
	PublishCleanup(ctx context.Context, bookID uint64, paths []string) error
}

// Attachment is an uploaded file with its client-supplied name.
type Attachment struct {
	Filename string
	Content  io.Reader
}

func (a *Attachment) present() bool {
	return a != nil && strings.TrimSpace(a.Filename) != "" && a.Content != nil
}

type UploadInput struct {
	Title       string
	Author      string
	Category    string
	Description string
	Book        *Attachment
	Thumbnail   *Attachment
}

type UpdateInput struct {
	Title    *string
	Author   *string
	Category *string
}

// Download is an opened blob ready to be streamed. The caller closes Body.
type Download struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

type Option func(*CatalogService)

// WithCache serves the list and stats views from c.
func WithCache(c utils.Cache, ttl time.Duration) Option {
	return func(s *CatalogService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithCleanup enables blob cleanup after delete.
func WithCleanup(p CleanupPublisher) Option {
	return func(s *CatalogService) { s.cleanup = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *CatalogService) { s.now = now }
}

func WithNameGenerator(gen func(ext string) string) Option {
	return func(s *CatalogService) { s.newName = gen }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *CatalogService) { s.log = l }
}

// CatalogService coordinates the blob store and the catalog store.
type CatalogService struct {
	store    *repo.CatalogStore
	blobs    storage.Store
	cache    utils.Cache
	cacheTTL time.Duration
	cleanup  CleanupPublisher
	now      func() time.Time
	newName  func(ext string) string
	log      *zap.Logger
}

func NewCatalogService(store *repo.CatalogStore, blobs storage.Store, opts ...Option) *CatalogService {
	s := &CatalogService{
		store:    store,
		blobs:    blobs,
		cacheTTL: defaultCacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
		newName:  utils.NewStorageName,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports whether the catalog store is reachable.
func (s *CatalogService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return internalError("ping catalog", err)
	}
	return nil
}

// ListBooks returns every book, newest upload first.
func (s *CatalogService) ListBooks(ctx context.Context) ([]dto.BookSummary, error) {
	var cached []dto.BookSummary
	if s.cacheGet(ctx, utils.CacheKeyBookList, &cached) {
		return cached, nil
	}

	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, internalError("list books", err)
	}
	out := make([]dto.BookSummary, 0, len(books))
	for _, b := range books {
		out = append(out, dto.BookSummary{
			ID:            b.ID,
			Title:         b.Title,
			Author:        b.Author,
			Category:      b.Category,
			Description:   b.Description,
			FileName:      b.FileName,
			FileSize:      FormatFileSize(b.FileSize),
			Downloads:     b.Downloads,
			UploadDate:    b.UploadAt,
			ThumbnailPath: ThumbnailRef(b.ThumbnailPath),
		})
	}
	s.cacheSet(ctx, utils.CacheKeyBookList, out)
	return out, nil
}

// ThumbnailRef derives the public reference of a stored thumbnail.
func ThumbnailRef(storedPath string) string {
	return ThumbnailRoute + path.Base(filepath.ToSlash(storedPath))
}

// GetBook returns the full record for id.
func (s *CatalogService) GetBook(ctx context.Context, id uint64) (*model.Book, error) {
	book, err := s.store.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("Book not found")
		}
		return nil, internalError("get book", err)
	}
	return book, nil
}

// UploadBook validates the input, writes both blobs and then inserts the row.
func (s *CatalogService) UploadBook(ctx context.Context, in UploadInput) (*model.Book, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	category := strings.TrimSpace(in.Category)
	if title == "" || author == "" || category == "" || !in.Book.present() || !in.Thumbnail.present() {
		return nil, validationError("All fields are required")
	}
	bookExt := extensionOf(in.Book.Filename)
	if _, ok := allowedBookExts[bookExt]; !ok {
		return nil, validationError("Invalid book file")
	}
	thumbExt := extensionOf(in.Thumbnail.Filename)
	if _, ok := allowedImageExts[thumbExt]; !ok {
		return nil, validationError("Invalid thumbnail")
	}

	bookPath, err := s.blobs.Write(ctx, storage.KindBook, s.newName(bookExt), in.Book.Content)
	if err != nil {
		return nil, internalError("write book file", err)
	}
	thumbPath, err := s.blobs.Write(ctx, storage.KindThumbnail, s.newName(thumbExt), in.Thumbnail.Content)
	if err != nil {
		s.discard(ctx, bookPath)
		return nil, internalError("write thumbnail", err)
	}
	size, err := s.blobs.Size(ctx, bookPath)
	if err != nil {
		s.discard(ctx, bookPath, thumbPath)
		return nil, internalError("measure book file", err)
	}

	book := &model.Book{
		Title:         title,
		Author:        author,
		Category:      category,
		Description:   in.Description,
		FileName:      path.Base(filepath.ToSlash(in.Book.Filename)),
		FilePath:      bookPath,
		ThumbnailName: path.Base(filepath.ToSlash(in.Thumbnail.Filename)),
		ThumbnailPath: thumbPath,
		FileSize:      size,
		Downloads:     0,
		UploadAt:      s.now(),
	}
	if err := s.store.CreateBook(ctx, book); err != nil {
		s.discard(ctx, bookPath, thumbPath)
		return nil, internalError("insert book", err)
	}
	s.invalidate(ctx)
	s.log.Info("book uploaded",
		zap.Uint64("id", book.ID),
		zap.String("file_path", bookPath),
		zap.Int64("file_size", size),
	)
	return book, nil
}

// DownloadBook counts the download and opens the book file.
// The counter is persisted before the blob is opened.
func (s *CatalogService) DownloadBook(ctx context.Context, id uint64) (*Download, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.IncrementDownloads(ctx, id)
	if err != nil {
		return nil, internalError("count download", err)
	}
	if !ok {
		return nil, notFoundError("Book not found")
	}
	s.invalidate(ctx)

	body, info, err := s.blobs.Open(ctx, book.FilePath)
	if err != nil {
		return nil, internalError("open book file", err)
	}
	name := book.FileName
	if name == "" {
		name = path.Base(filepath.ToSlash(book.FilePath))
	}
	return &Download{
		FileName:    name,
		ContentType: storage.ContentType(name),
		Size:        info.Size,
		Body:        body,
	}, nil
}

// UpdateBook overwrites title, author and category. Nil fields become empty strings
// and a missing id is not reported.
func (s *CatalogService) UpdateBook(ctx context.Context, id uint64, in UpdateInput) error {
	if err := s.store.UpdateBookFields(ctx, id, deref(in.Title), deref(in.Author), deref(in.Category)); err != nil {
		return internalError("update book", err)
	}
	s.invalidate(ctx)
	return nil
}

// DeleteBook removes the row for id. Blobs stay unless a cleanup publisher is set.
func (s *CatalogService) DeleteBook(ctx context.Context, id uint64) error {
	var paths []string
	if s.cleanup != nil {
		book, err := s.store.GetBook(ctx, id)
		switch {
		case err == nil:
			paths = []string{book.FilePath, book.ThumbnailPath}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return internalError("load book", err)
		}
	}
	if err := s.store.DeleteBook(ctx, id); err != nil {
		return internalError("delete book", err)
	}
	s.invalidate(ctx)

	if len(paths) > 0 {
		if err := s.cleanup.PublishCleanup(ctx, id, paths); err != nil {
			s.log.Warn("publish blob cleanup failed", zap.Uint64("id", id), zap.Error(err))
		}
	}
	return nil
}

// AdminStats aggregates the catalog. Book files missing from the blob store are skipped.
func (s *CatalogService) AdminStats(ctx context.Context) (*dto.StatsResponse, error) {
	var cached dto.StatsResponse
	if s.cacheGet(ctx, utils.CacheKeyAdminStats, &cached) {
		return &cached, nil
	}

	count, err := s.store.CountBooks(ctx)
	if err != nil {
		return nil, internalError("count books", err)
	}
	downloads, err := s.store.SumDownloads(ctx)
	if err != nil {
		return nil, internalError("sum downloads", err)
	}
	paths, err := s.store.ListFilePaths(ctx)
	if err != nil {
		return nil, internalError("list file paths", err)
	}
	var total int64
	for _, p := range paths {
		exists, err := s.blobs.Exists(ctx, p)
		if err != nil || !exists {
			continue
		}
		size, err := s.blobs.Size(ctx, p)
		if err != nil {
			continue
		}
		total += size
	}

	stats := &dto.StatsResponse{
		TotalBooks:     count,
		TotalDownloads: downloads,
		TotalSize:      FormatMegabytes(total),
	}
	s.cacheSet(ctx, utils.CacheKeyAdminStats, stats)
	return stats, nil
}

// OpenThumbnail opens a stored thumbnail by its storage name.
func (s *CatalogService) OpenThumbnail(ctx context.Context, name string) (*Download, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, validationError("Invalid thumbnail name")
	}
	body, info, err := s.blobs.Open(ctx, s.blobs.Locate(storage.KindThumbnail, name))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, notFoundError("Thumbnail not found")
		}
		return nil, internalError("open thumbnail", err)
	}
	return &Download{
		FileName:    name,
		ContentType: storage.ContentType(name),
		Size:        info.Size,
		Body:        body,
	}, nil
}

func extensionOf(filename string) string {
	return strings.ToLower(path.Ext(path.Base(filepath.ToSlash(filename))))
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// discard removes blobs written by a failed upload. Failures are only logged.
func (s *CatalogService) discard(ctx context.Context, paths ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range paths {
		if err := s.blobs.Remove(ctx, p); err != nil {
			s.log.Warn("discard blob failed", zap.String("path", p), zap.Error(err))
		}
	}
}

func (s *CatalogService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	if err := s.cache.Get(ctx, key, dest); err != nil {
		if !errors.Is(err, utils.ErrCacheMiss) {
			s.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

func (s *CatalogService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, utils.CacheKeyBookList, utils.CacheKeyAdminStats); err != nil {
		s.log.Warn("cache invalidate failed", zap.Error(err))
	}
}
