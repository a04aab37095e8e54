package service

import (
	"OceanBooks/config"
	"OceanBooks/internal/repo"
	"OceanBooks/internal/storage"
	"OceanBooks/utils"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore wraps a LocalStore, counts writes and can fail the n-th write.
type recordingStore struct {
	storage.Store
	mu        sync.Mutex
	writes    int
	failWrite int
	removed   []string
}

func (s *recordingStore) Write(ctx context.Context, kind storage.Kind, name string, r io.Reader) (string, error) {
	s.mu.Lock()
	s.writes++
	n := s.writes
	s.mu.Unlock()
	if s.failWrite > 0 && n == s.failWrite {
		return "", errors.New("disk full")
	}
	return s.Store.Write(ctx, kind, name, r)
}

func (s *recordingStore) Remove(ctx context.Context, p string) error {
	s.mu.Lock()
	s.removed = append(s.removed, p)
	s.mu.Unlock()
	return s.Store.Remove(ctx, p)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	svc   *CatalogService
	store *repo.CatalogStore
	blobs *recordingStore
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := repo.OpenDB(config.Config{DBDriver: repo.DriverSQLite, DBPath: filepath.Join(dir, "books.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store := repo.NewCatalogStore(db)
	require.NoError(t, InitCatalog(context.Background(), store, "admin", "admin123"))

	local, err := storage.NewLocalStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	blobs := &recordingStore{Store: local}

	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	all := append([]Option{WithClock(clock.Now)}, opts...)
	return &testEnv{
		svc:   NewCatalogService(store, blobs, all...),
		store: store,
		blobs: blobs,
	}
}

func validUpload(title, content string) UploadInput {
	return UploadInput{
		Title:       title,
		Author:      "Herman Melville",
		Category:    "Classic",
		Description: "a whale of a tale",
		Book:        &Attachment{Filename: title + ".pdf", Content: strings.NewReader(content)},
		Thumbnail:   &Attachment{Filename: "cover.PNG", Content: strings.NewReader("png-bytes")},
	}
}

// TestUploadBookRecordsBlobSize tests that the stored size matches the written bytes.
func TestUploadBookRecordsBlobSize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	content := strings.Repeat("x", 3000)

	created, err := env.svc.UploadBook(ctx, validUpload("moby", content))
	require.NoError(t, err)

	book, err := env.svc.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), book.FileSize)
	assert.Equal(t, int64(0), book.Downloads)
	assert.Equal(t, "moby.pdf", book.FileName)
	assert.Equal(t, "cover.PNG", book.ThumbnailName)
	assert.True(t, strings.HasSuffix(book.FilePath, ".pdf"))
	assert.True(t, strings.HasSuffix(book.ThumbnailPath, ".png"))

	size, err := env.blobs.Size(ctx, book.FilePath)
	require.NoError(t, err)
	assert.Equal(t, book.FileSize, size)
}

// TestUploadBookValidation tests that incomplete input fails before any blob write.
func TestUploadBookValidation(t *testing.T) {
	cases := map[string]func(in *UploadInput){
		"missing title":     func(in *UploadInput) { in.Title = "" },
		"blank author":      func(in *UploadInput) { in.Author = "   " },
		"missing category":  func(in *UploadInput) { in.Category = "" },
		"missing book":      func(in *UploadInput) { in.Book = nil },
		"missing thumbnail": func(in *UploadInput) { in.Thumbnail = nil },
		"empty book name":   func(in *UploadInput) { in.Book.Filename = "" },
		"exe book":          func(in *UploadInput) { in.Book.Filename = "virus.exe" },
		"gif thumbnail":     func(in *UploadInput) { in.Thumbnail.Filename = "cover.gif" },
		"no extension":      func(in *UploadInput) { in.Book.Filename = "README" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			in := validUpload("book", "content")
			mutate(&in)

			_, err := env.svc.UploadBook(context.Background(), in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, 0, env.blobs.writes)

			count, err := env.store.CountBooks(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	}
}

// TestUploadBookMessages tests the client-facing validation messages.
func TestUploadBookMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := validUpload("book", "c")
	in.Title = ""
	_, err := env.svc.UploadBook(ctx, in)
	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "All fields are required", svcErr.Msg)

	in = validUpload("book", "c")
	in.Book.Filename = "x.exe"
	_, err = env.svc.UploadBook(ctx, in)
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "Invalid book file", svcErr.Msg)

	in = validUpload("book", "c")
	in.Thumbnail.Filename = "x.bmp"
	_, err = env.svc.UploadBook(ctx, in)
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "Invalid thumbnail", svcErr.Msg)
}

// TestUploadBookThumbnailFailure tests that a failed thumbnail write leaves no row or blob.
func TestUploadBookThumbnailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.blobs.failWrite = 2
	ctx := context.Background()

	_, err := env.svc.UploadBook(ctx, validUpload("broken", "content"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)

	count, err := env.store.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.Len(t, env.blobs.removed, 1)
	_, statErr := os.Stat(env.blobs.removed[0])
	assert.True(t, os.IsNotExist(statErr))
}

// TestUploadBookUsesGeneratedNames tests that stored names come from the generator.
func TestUploadBookUsesGeneratedNames(t *testing.T) {
	n := 0
	env := newTestEnv(t, WithNameGenerator(func(ext string) string {
		n++
		return fmt.Sprintf("name-%d%s", n, ext)
	}))
	book, err := env.svc.UploadBook(context.Background(), validUpload("named", "c"))
	require.NoError(t, err)
	assert.Equal(t, "name-1.pdf", filepath.Base(book.FilePath))
	assert.Equal(t, "name-2.png", filepath.Base(book.ThumbnailPath))
}

// TestDownloadBookCountsEachCall tests that N downloads yield a counter of N.
func TestDownloadBookCountsEachCall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, err := env.svc.UploadBook(ctx, validUpload("counted", "book body"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		dl, err := env.svc.DownloadBook(ctx, created.ID)
		require.NoError(t, err)
		data, err := io.ReadAll(dl.Body)
		require.NoError(t, dl.Body.Close())
		require.NoError(t, err)
		assert.Equal(t, "book body", string(data))
		assert.Equal(t, "counted.pdf", dl.FileName)
		assert.Equal(t, "application/pdf", dl.ContentType)
	}

	book, err := env.svc.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), book.Downloads)
}

// TestDownloadBookConcurrent tests that simultaneous downloads of one book lose no counts.
func TestDownloadBookConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, err := env.svc.UploadBook(ctx, validUpload("rush", "book body"))
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dl, err := env.svc.DownloadBook(ctx, created.ID)
			if err != nil {
				errs <- err
				return
			}
			_, _ = io.Copy(io.Discard, dl.Body)
			_ = dl.Body.Close()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("DownloadBook failed: %v", err)
	}

	book, err := env.svc.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), book.Downloads)

	stats, err := env.svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalBooks)
	assert.Equal(t, int64(n), stats.TotalDownloads)
}

// TestDownloadBookNotFound tests unknown ids.
func TestDownloadBookNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.DownloadBook(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestDownloadBookMissingBlob tests that a missing file is internal and the counter stays.
func TestDownloadBookMissingBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, err := env.svc.UploadBook(ctx, validUpload("gone", "body"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(created.FilePath))

	_, err = env.svc.DownloadBook(ctx, created.ID)
	assert.ErrorIs(t, err, ErrInternal)

	book, err := env.svc.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), book.Downloads)
}

// TestDeleteBookThenGet tests that a deleted book is not found and its blobs stay.
func TestDeleteBookThenGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, err := env.svc.UploadBook(ctx, validUpload("doomed", "body"))
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteBook(ctx, created.ID))
	_, err = env.svc.GetBook(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, statErr := os.Stat(created.FilePath)
	assert.NoError(t, statErr)

	assert.NoError(t, env.svc.DeleteBook(ctx, created.ID))
}

type fakeCleanup struct {
	bookID uint64
	paths  []string
	err    error
}

func (f *fakeCleanup) PublishCleanup(_ context.Context, bookID uint64, paths []string) error {
	f.bookID = bookID
	f.paths = paths
	return f.err
}

// TestDeleteBookPublishesCleanup tests that a configured publisher receives both blob paths.
func TestDeleteBookPublishesCleanup(t *testing.T) {
	cleanup := &fakeCleanup{err: errors.New("broker down")}
	env := newTestEnv(t, WithCleanup(cleanup))
	ctx := context.Background()
	created, err := env.svc.UploadBook(ctx, validUpload("cleaned", "body"))
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteBook(ctx, created.ID))
	assert.Equal(t, created.ID, cleanup.bookID)
	assert.Equal(t, []string{created.FilePath, created.ThumbnailPath}, cleanup.paths)

	_, err = env.svc.GetBook(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestListBooksNewestFirst tests that B uploaded after A is listed first.
func TestListBooksNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	books, err := env.svc.ListBooks(ctx)
	require.NoError(t, err)
	assert.NotNil(t, books)
	assert.Empty(t, books)

	_, err = env.svc.UploadBook(ctx, validUpload("A", strings.Repeat("a", 1536)))
	require.NoError(t, err)
	b, err := env.svc.UploadBook(ctx, validUpload("B", "b"))
	require.NoError(t, err)

	books, err = env.svc.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "B", books[0].Title)
	assert.Equal(t, "A", books[1].Title)
	assert.Equal(t, "1.5 KB", books[1].FileSize)
	assert.Equal(t, "/api/thumbnails/"+filepath.Base(b.ThumbnailPath), books[0].ThumbnailPath)
}

// TestUpdateBookOverwrites tests unconditional overwrite with nil fields cleared.
func TestUpdateBookOverwrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, err := env.svc.UploadBook(ctx, validUpload("old", "body"))
	require.NoError(t, err)

	title := "new title"
	require.NoError(t, env.svc.UpdateBook(ctx, created.ID, UpdateInput{Title: &title}))

	book, err := env.svc.GetBook(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new title", book.Title)
	assert.Equal(t, "", book.Author)
	assert.Equal(t, "", book.Category)

	assert.NoError(t, env.svc.UpdateBook(ctx, 9999, UpdateInput{Title: &title}))
}

// TestAdminStats tests the empty catalog and the skipped missing files.
func TestAdminStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stats, err := env.svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalBooks)
	assert.Equal(t, int64(0), stats.TotalDownloads)
	assert.Equal(t, "0.0 MB", stats.TotalSize)

	a, err := env.svc.UploadBook(ctx, validUpload("a", strings.Repeat("a", 1024*1024)))
	require.NoError(t, err)
	b, err := env.svc.UploadBook(ctx, validUpload("b", strings.Repeat("b", 512*1024)))
	require.NoError(t, err)
	c, err := env.svc.UploadBook(ctx, validUpload("c", "ccc"))
	require.NoError(t, err)
	require.NoError(t, os.Remove(c.FilePath))

	for _, id := range []uint64{a.ID, a.ID, b.ID} {
		dl, err := env.svc.DownloadBook(ctx, id)
		require.NoError(t, err)
		require.NoError(t, dl.Body.Close())
	}

	stats, err = env.svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalBooks)
	assert.Equal(t, int64(3), stats.TotalDownloads)
	assert.Equal(t, "1.5 MB", stats.TotalSize)
}

// TestOpenThumbnail tests serving stored thumbnails by reference.
func TestOpenThumbnail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created, err := env.svc.UploadBook(ctx, validUpload("covered", "body"))
	require.NoError(t, err)

	dl, err := env.svc.OpenThumbnail(ctx, filepath.Base(created.ThumbnailPath))
	require.NoError(t, err)
	data, err := io.ReadAll(dl.Body)
	require.NoError(t, dl.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", dl.ContentType)

	_, err = env.svc.OpenThumbnail(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.OpenThumbnail(ctx, "../books/x.pdf")
	assert.ErrorIs(t, err, ErrValidation)
}

// TestCacheInvalidation tests that cached views are dropped after writes.
func TestCacheInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	env := newTestEnv(t, WithCache(utils.NewRedisCache(client), time.Minute))
	ctx := context.Background()

	books, err := env.svc.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
	_, err = env.svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists(utils.CacheKeyBookList))
	assert.True(t, mr.Exists(utils.CacheKeyAdminStats))

	created, err := env.svc.UploadBook(ctx, validUpload("fresh", "body"))
	require.NoError(t, err)
	assert.False(t, mr.Exists(utils.CacheKeyBookList))
	assert.False(t, mr.Exists(utils.CacheKeyAdminStats))

	books, err = env.svc.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	stats, err := env.svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalDownloads)

	dl, err := env.svc.DownloadBook(ctx, created.ID)
	require.NoError(t, err)
	require.NoError(t, dl.Body.Close())
	assert.False(t, mr.Exists(utils.CacheKeyAdminStats))

	stats, err = env.svc.AdminStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalDownloads)
}
