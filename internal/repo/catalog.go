package repo

import (
	"OceanBooks/model"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const seedAdminID = 1

// CatalogStore is the relational store for book records and the admin credential.
type CatalogStore struct {
	db *gorm.DB
}

// NewCatalogStore wraps an opened database handle.
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// Ping checks that the database accepts connections.
func (s *CatalogStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Init creates the schema and the seed admin row if they are absent.
// Running it again never duplicates or overwrites the seed row.
func (s *CatalogStore) Init(ctx context.Context, username, passwordHash string) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&model.Book{}, &model.Admin{}); err != nil {
		return err
	}
	seed := &model.Admin{ID: seedAdminID, Username: username, PasswordHash: passwordHash}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error
}

// CreateBook inserts a book record and fills its generated ID.
func (s *CatalogStore) CreateBook(ctx context.Context, book *model.Book) error {
	return s.db.WithContext(ctx).Create(book).Error
}

// GetBook loads a book by ID.
func (s *CatalogStore) GetBook(ctx context.Context, id uint64) (*model.Book, error) {
	var book model.Book
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// ListBooks returns every book, most recently uploaded first.
func (s *CatalogStore) ListBooks(ctx context.Context) ([]model.Book, error) {
	books := make([]model.Book, 0)
	if err := s.db.WithContext(ctx).
		Order("upload_date desc").
		Order("id desc").
		Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

// UpdateBookFields overwrites title, author and category. Missing rows are a no-op.
func (s *CatalogStore) UpdateBookFields(ctx context.Context, id uint64, title, author, category string) error {
	return s.db.WithContext(ctx).Model(&model.Book{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":    title,
			"author":   author,
			"category": category,
		}).Error
}

// IncrementDownloads adds one to the download counter in a single relative update.
func (s *CatalogStore) IncrementDownloads(ctx context.Context, id uint64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Book{}).
		Where("id = ?", id).
		UpdateColumn("downloads", gorm.Expr("downloads + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteBook removes a book row. Missing rows are a no-op.
func (s *CatalogStore) DeleteBook(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Book{}).Error
}

// CountBooks returns the number of book rows.
func (s *CatalogStore) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Book{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumDownloads returns the total of all download counters, 0 for an empty catalog.
func (s *CatalogStore) SumDownloads(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Book{}).
		Select("COALESCE(SUM(downloads), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListFilePaths returns the stored book file path of every row.
func (s *CatalogStore) ListFilePaths(ctx context.Context) ([]string, error) {
	paths := make([]string, 0)
	if err := s.db.WithContext(ctx).Model(&model.Book{}).
		Order("id").
		Pluck("file_path", &paths).Error; err != nil {
		return nil, err
	}
	return paths, nil
}

// FindAdmin loads the admin credential by username. It returns nil when absent.
func (s *CatalogStore) FindAdmin(ctx context.Context, username string) (*model.Admin, error) {
	var admin model.Admin
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &admin, nil
}
