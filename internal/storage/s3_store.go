// internal/storage/s3_store.go
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Corphon/StoryForge/internal/models"
)

const s3AnalysisPrefix = "analyses/"

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store 分析以 analyses/<key>.json 对象存放在 S3 兼容存储中
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string

	initMu    sync.Mutex
	initReady bool // 只记住成功，失败时下次调用重试
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{client: client, bucketName: bucket, region: region}, nil
}

func (s *S3Store) Name() string { return "s3:" + s.bucketName }

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.initReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.initReady = true
	return nil
}

func analysisObjectKey(title string) string {
	return s3AnalysisPrefix + SanitizeKey(title) + ".json"
}

func (s *S3Store) Save(ctx context.Context, analysis *models.ScriptAnalysis) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	content, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucketName, analysisObjectKey(analysis.Title),
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (s *S3Store) get(ctx context.Context, key string) (*models.ScriptAnalysis, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var analysis models.ScriptAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &analysis, nil
}

// LoadAll 列出前缀下全部对象并逐个读取
func (s *S3Store) LoadAll(ctx context.Context) ([]*models.ScriptAnalysis, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	// 提前返回时停止 minio 的列举协程
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make([]string, 0, 32)
	for obj := range s.client.ListObjects(listCtx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    s3AnalysisPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, ".json") {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)

	var (
		out  []*models.ScriptAnalysis
		errs []error
	)
	for _, key := range keys {
		analysis, err := s.get(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, analysis)
	}
	return out, errors.Join(errs...)
}
