package dto

import "time"

// BookSummary is one entry of the catalog listing.
type BookSummary struct {
	ID            uint64    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	FileName      string    `json:"file_name"`
	FileSize      string    `json:"file_size"`
	Downloads     int64     `json:"downloads"`
	UploadDate    time.Time `json:"upload_date"`
	ThumbnailPath string    `json:"thumbnail_path"`
}

// StatsResponse is the admin aggregate view.
type StatsResponse struct {
	TotalBooks     int64  `json:"total_books"`
	TotalDownloads int64  `json:"total_downloads"`
	TotalSize      string `json:"total_size"`
}
