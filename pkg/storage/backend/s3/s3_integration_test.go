//go:build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/backend/backendtest"
)

type localstack struct {
	container testcontainers.Container
	endpoint  string
	client    *s3.Client
}

func startLocalstack(t *testing.T) *localstack {
	t.Helper()
	ctx := context.Background()

	if endpoint := os.Getenv("LOCALSTACK_ENDPOINT"); endpoint != "" {
		ls := &localstack{endpoint: endpoint}
		ls.connect(t)
		return ls
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "localstack/localstack:3.0",
			ExposedPorts: []string{"4566/tcp"},
			Env: map[string]string{
				"SERVICES":              "s3",
				"DEFAULT_REGION":        "us-east-1",
				"EAGER_SERVICE_LOADING": "1",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4566/tcp"),
				wait.ForHTTP("/_localstack/health").
					WithPort("4566/tcp").
					WithStartupTimeout(60*time.Second),
			),
		},
		Started: true,
	})
	require.NoError(t, err, "start localstack")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err)

	ls := &localstack{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
	ls.connect(t)
	return ls
}

func (ls *localstack) connect(t *testing.T) {
	t.Helper()
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)
	ls.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(ls.endpoint)
		o.UsePathStyle = true
	})
}

func (ls *localstack) terminate() {
	if ls.container != nil {
		_ = ls.container.Terminate(context.Background())
	}
}

var bucketSeq atomic.Int64

func (ls *localstack) newStore(t *testing.T, prefix string) *Store {
	t.Helper()
	bucket := fmt.Sprintf("certstore-test-%d-%d", time.Now().UnixNano()%1e6, bucketSeq.Add(1))
	_, err := ls.client.CreateBucket(context.Background(), &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)
	return New(ls.client, Config{Bucket: bucket, KeyPrefix: prefix})
}

func TestS3Backend(t *testing.T) {
	ls := startLocalstack(t)
	defer ls.terminate()

	t.Run("Conformance", func(t *testing.T) {
		backendtest.Run(t, func(t *testing.T) backend.Backend {
			return ls.newStore(t, "")
		})
	})

	t.Run("ConformanceWithPrefix", func(t *testing.T) {
		backendtest.Run(t, func(t *testing.T) backend.Backend {
			return ls.newStore(t, "tenant-a/")
		})
	})

	t.Run("PresignUpload", func(t *testing.T) {
		s := ls.newStore(t, "")
		url, err := s.PresignUpload(context.Background(), "uploads/logo.png", "image/png", 5*time.Minute)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, ls.endpoint), url)
		assert.Contains(t, url, "uploads/logo.png")
		assert.Contains(t, url, "X-Amz-Expires=300")
	})

	t.Run("NewFromConfig", func(t *testing.T) {
		existing := ls.newStore(t, "")
		s, err := NewFromConfig(context.Background(), Config{
			Bucket:          existing.bucket,
			Region:          "us-east-1",
			Endpoint:        ls.endpoint,
			ForcePathStyle:  true,
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			MaxRetries:      2,
		})
		require.NoError(t, err)
		require.NoError(t, s.HealthCheck(context.Background()))
	})
}
