package artifact

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vk/frostline/internal/ctxlog"
)

// AssetInput defines the arguments for creating an artifact_store resource.
type AssetInput struct {
	Endpoint  string `hcl:"endpoint"`
	AccessKey string `hcl:"access_key"`
	SecretKey string `hcl:"secret_key"`
	Bucket    string `hcl:"bucket"`
	Region    string `hcl:"region,optional"`
	UseSSL    bool   `hcl:"use_ssl,optional"`
}

// Store is the live object shared with runners that use this asset. It wraps
// a connected object-store client bound to a single bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// Bucket returns the bucket this store writes into.
func (s *Store) Bucket() string {
	return s.bucket
}

// Upload writes a single local file under the given object key, tagging it
// with the retention window in days.
func (s *Store) Upload(ctx context.Context, key, path, contentType string, retentionDays int) (int64, error) {
	opts := minio.PutObjectOptions{
		ContentType: contentType,
		UserTags:    map[string]string{"retention-days": fmt.Sprintf("%d", retentionDays)},
	}
	info, err := s.client.FPutObject(ctx, s.bucket, key, path, opts)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// createStore is the 'create' handler for the asset. It connects to the
// object store and makes sure the target bucket exists.
func createStore(ctx context.Context, input *AssetInput) (*Store, error) {
	logger := ctxlog.FromContext(ctx).With("asset", "artifact_store", "endpoint", input.Endpoint, "bucket", input.Bucket)

	client, err := minio.New(input.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(input.AccessKey, input.SecretKey, ""),
		Secure:    input.UseSSL,
		Region:    input.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	exists, err := client.BucketExists(ctx, input.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", input.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, input.Bucket, minio.MakeBucketOptions{Region: input.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", input.Bucket, err)
		}
		logger.Info("Created artifact bucket")
	}

	logger.Info("Artifact store connected")
	return &Store{client: client, bucket: input.Bucket}, nil
}

// destroyStore is the 'destroy' handler. The client holds no state that
// outlives the run.
func destroyStore(store *Store) error {
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
