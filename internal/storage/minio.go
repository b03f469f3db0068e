package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"resumeBuilder/internal/config"
)

const exportPrefix = "exports"

// Client 封装 MinIO 客户端，用于保存简历导出快照。
// 内部客户端负责读写；公开客户端只用于签发外部可访问的下载链接。
type Client struct {
	internalClient *minio.Client
	publicClient   *minio.Client
	bucketName     string
	logger         *slog.Logger
}

// NewClient 根据配置初始化 MinIO 客户端，并确保目标 Bucket 存在。
func NewClient(ctx context.Context, cfg config.MinIOConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bucketLookup, err := parseBucketLookup(cfg.BucketLookup)
	if err != nil {
		return nil, err
	}

	creds := credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	internalClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        creds,
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: bucketLookup,
	})
	if err != nil {
		return nil, fmt.Errorf("init internal minio client: %w", err)
	}

	publicClient := internalClient
	if strings.TrimSpace(cfg.PublicEndpoint) != "" {
		parsed, err := url.Parse(cfg.PublicEndpoint)
		if err != nil {
			return nil, fmt.Errorf("parse minio public endpoint: %w", err)
		}
		if parsed.Host == "" {
			return nil, fmt.Errorf("invalid minio public endpoint, host missing")
		}
		publicClient, err = minio.New(parsed.Host, &minio.Options{
			Creds:        creds,
			Secure:       parsed.Scheme == "https",
			Region:       cfg.Region,
			BucketLookup: bucketLookup,
		})
		if err != nil {
			return nil, fmt.Errorf("init public minio client: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := internalClient.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if !cfg.AutoCreateBucket {
			return nil, fmt.Errorf("bucket %q does not exist (auto create disabled)", cfg.Bucket)
		}
		if err := internalClient.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", cfg.Bucket, err)
		}
		logger.Info("created minio bucket", slog.String("bucket", cfg.Bucket))
	}

	return &Client{
		internalClient: internalClient,
		publicClient:   publicClient,
		bucketName:     cfg.Bucket,
		logger:         logger,
	}, nil
}

func parseBucketLookup(value string) (minio.BucketLookupType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "auto":
		return minio.BucketLookupAuto, nil
	case "dns":
		return minio.BucketLookupDNS, nil
	case "path":
		return minio.BucketLookupPath, nil
	default:
		return minio.BucketLookupAuto, fmt.Errorf("invalid minio bucket lookup %q", value)
	}
}

// ResumePrefix 返回某份简历全部导出快照所在的前缀。
func ResumePrefix(userID, resumeID uint) string {
	return fmt.Sprintf("%s/%d/%d/", exportPrefix, userID, resumeID)
}

// SnapshotKey 返回一次导出快照的对象键：exports/<user>/<resume>/<id>.json。
func SnapshotKey(userID, resumeID uint, snapshotID string) string {
	return ResumePrefix(userID, resumeID) + snapshotID + ".json"
}

// PutObject 将数据写入私有 Bucket。
func (c *Client) PutObject(ctx context.Context, objectKey string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := c.internalClient.PutObject(ctx, c.bucketName, objectKey, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("put object %q: %w", objectKey, err)
	}
	return nil
}

// PresignedURL 生成对象的限时下载链接。
func (c *Client) PresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	presigned, err := c.publicClient.PresignedGetObject(ctx, c.bucketName, objectKey, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("generate presigned url for %q: %w", objectKey, err)
	}
	return presigned.String(), nil
}

// DeleteObject 删除指定对象。对象不存在视为成功。
func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	objectKey = strings.TrimSpace(objectKey)
	if objectKey == "" {
		return nil
	}
	if err := c.internalClient.RemoveObject(ctx, c.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		if IsNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("remove object %q: %w", objectKey, err)
	}
	return nil
}

// DeletePrefix 删除指定前缀下的所有对象，失败项聚合返回。
func (c *Client) DeletePrefix(ctx context.Context, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}

	objCh := c.internalClient.ListObjects(ctx, c.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	var errs []error
	deleted := 0
	for object := range objCh {
		if object.Err != nil {
			if IsNoSuchBucket(object.Err) {
				return nil
			}
			return fmt.Errorf("list objects under %q: %w", prefix, object.Err)
		}
		if strings.TrimSpace(object.Key) == "" {
			continue
		}
		if err := c.DeleteObject(ctx, object.Key); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted++
	}

	if len(errs) > 0 {
		c.logger.Error("delete minio objects under prefix failed",
			slog.String("prefix", prefix),
			slog.Int("failed_count", len(errs)),
		)
		return fmt.Errorf("delete objects under %q: %w", prefix, errors.Join(errs...))
	}
	if deleted > 0 {
		c.logger.Debug("deleted export snapshots", slog.String("prefix", prefix), slog.Int("count", deleted))
	}
	return nil
}
