package config

import (
	"strings"
	"sync"
)

const (
	BlobBackendLocal = "local"
	BlobBackendMinio = "minio"
)

// StorageConfig holds blob store settings.
type StorageConfig struct {
	Backend   string      `json:"backend"`    // local, minio
	UploadDir string      `json:"upload_dir"` // root of books/ and thumbnails/ for the local backend
	Minio     MinioConfig `json:"minio"`
}

// MinioConfig describes the MinIO node used by the minio backend.
type MinioConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Bucket   string `json:"bucket"`
	UseSSL   bool   `json:"use_ssl"`
}

var StorageConfigInstance *StorageConfig
var storageConfigOnce sync.Once

// LoadStorageConfig reads blob store settings from the environment.
func LoadStorageConfig() StorageConfig {
	backend := strings.ToLower(getEnv("BLOB_BACKEND", BlobBackendLocal))
	if backend != BlobBackendMinio {
		backend = BlobBackendLocal
	}
	return StorageConfig{
		Backend:   backend,
		UploadDir: getEnv("UPLOAD_DIR", "uploads"),
		Minio: MinioConfig{
			Host:     getEnv("MINIO_HOST", "localhost"),
			Port:     getEnv("MINIO_PORT", "9000"),
			Username: getEnv("MINIO_USERNAME", "minioadmin"),
			Password: getEnv("MINIO_PASSWORD", "minioadmin"),
			Bucket:   getEnv("BUCKET_NAME", "ocean-books"),
			UseSSL:   getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

// InitStorageConfig initializes storage config.
func InitStorageConfig() {
	storageConfigOnce.Do(func() {
		cfg := LoadStorageConfig()
		StorageConfigInstance = &cfg
	})
}
