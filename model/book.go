package model

import "time"

type Book struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	Title       string `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Author      string `gorm:"column:author;type:varchar(255);not null" json:"author"`
	Category    string `gorm:"column:category;type:varchar(128);not null" json:"category"`
	Description string `gorm:"column:description;type:text" json:"description"`

	FileName string `gorm:"column:file_name;type:varchar(255);not null" json:"file_name"`
	FilePath string `gorm:"column:file_path;type:varchar(512);not null" json:"file_path"`

	ThumbnailName string `gorm:"column:thumbnail_name;type:varchar(255);not null" json:"thumbnail_name"`
	ThumbnailPath string `gorm:"column:thumbnail_path;type:varchar(512);not null" json:"thumbnail_path"`

	FileSize  int64     `gorm:"column:file_size;not null;default:0" json:"file_size"`
	Downloads int64     `gorm:"column:downloads;not null;default:0" json:"downloads"` // only ever moved by downloads + 1
	UploadAt  time.Time `gorm:"column:upload_date;index;not null" json:"upload_date"`
}

// TableName returns the database table name.
func (Book) TableName() string {
	return "books"
}
