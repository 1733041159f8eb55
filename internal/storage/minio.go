package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNoStorage is returned when object storage is not configured
var ErrNoStorage = errors.New("object storage not available")

var Client *minio.Client
var BucketName string

// Init connects to MinIO from MINIO_* variables and creates the bucket if needed
func Init() error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return ErrNoStorage
	}

	BucketName = os.Getenv("MINIO_BUCKET")
	if BucketName == "" {
		BucketName = "compliance-reports"
	}

	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, BucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, BucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketName, err)
		}
	}

	Client = client
	return nil
}

// Available reports whether object storage is configured
func Available() bool {
	return Client != nil
}

// UploadReport stores the rendered corrected invoice of a report.
// Path format: reports/YYYY/MM/{id}.html
func UploadReport(ctx context.Context, id string, html string) (string, error) {
	return put(ctx, reportObjectName(id, time.Now()), []byte(html), "text/html; charset=utf-8")
}

// UploadInvoice stores the original upload next to its report.
// Path format: invoices/YYYY/MM/{id}/{filename}
func UploadInvoice(ctx context.Context, id, filename string, data []byte, contentType string) (string, error) {
	return put(ctx, invoiceObjectName(id, filename, contentType, time.Now()), data, contentType)
}

func put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if Client == nil {
		return "", ErrNoStorage
	}

	_, err := Client.PutObject(ctx, BucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	// Return the full path for storage in DB
	return fmt.Sprintf("%s/%s", BucketName, objectName), nil
}

// GetPresignedURL generates a presigned URL for downloading a stored object
func GetPresignedURL(ctx context.Context, objectPath string) (string, error) {
	if Client == nil {
		return "", ErrNoStorage
	}

	url, err := Client.PresignedGetObject(ctx, BucketName, stripBucket(objectPath), 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}

func reportObjectName(id string, now time.Time) string {
	return fmt.Sprintf("reports/%d/%02d/%s.html", now.Year(), now.Month(), id)
}

func invoiceObjectName(id, filename, contentType string, now time.Time) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "invoice"
	}
	if filepath.Ext(name) == "" {
		name += GetFileExtension(contentType)
	}
	return fmt.Sprintf("invoices/%d/%02d/%s/%s", now.Year(), now.Month(), id, name)
}

// stripBucket removes the bucket prefix if present
func stripBucket(objectPath string) string {
	return strings.TrimPrefix(objectPath, BucketName+"/")
}

// GetFileExtension extracts file extension from content type
func GetFileExtension(contentType string) string {
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	switch mediaType {
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	case "text/html":
		return ".html"
	default:
		return ".bin"
	}
}
