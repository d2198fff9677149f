package utils

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// EnsureUploadDir creates the local uploads directory used as the icon
// storage fallback when R2 is not configured.
func EnsureUploadDir() error {
	return os.MkdirAll(filepath.Join("uploads", "badges"), os.ModePerm)
}

// SaveIconLocally writes an uploaded badge icon under ./uploads and returns
// the path served by the static route.
func SaveIconLocally(fileHeader *multipart.FileHeader, key string) (string, error) {
	destPath := filepath.Join("uploads", key)
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return "/" + filepath.ToSlash(destPath), nil
}
