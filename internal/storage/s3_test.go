//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/cloo-solutions/remind/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(ctx context.Context, t *testing.T) *S3Client {
	t.Helper()
	rc := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { rc.Terminate(ctx) })

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.S3AccessKey,
		SecretAccessKey: testutil.S3SecretKey,
		Bucket:          "remind-snapshots",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))
	return client
}

func TestS3Client_PutGetHead(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(ctx, t)

	body := []byte(`[{"date":"2024-05-20","entries":[{"time":"10:00:00","text":"a"}]}]`)
	key := "snapshots/2024-05-20/all_texts-100000.json"

	require.NoError(t, client.PutObject(ctx, key, body, "application/json"))

	meta, err := client.HeadObject(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), meta.ContentLength)
	assert.Equal(t, "application/json", meta.ContentType)

	got, err := client.GetObject(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestS3Client_ListKeys(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(ctx, t)

	for _, key := range []string{
		"snapshots/2024-05-21/all_texts-090000.json",
		"snapshots/2024-05-20/all_texts-100000.json",
		"other/readme.txt",
	} {
		require.NoError(t, client.PutObject(ctx, key, []byte("[]"), "application/json"))
	}

	keys, err := client.ListKeys(ctx, "snapshots/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"snapshots/2024-05-20/all_texts-100000.json",
		"snapshots/2024-05-21/all_texts-090000.json",
	}, keys)
}

func TestS3Client_EnsureBucketIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(ctx, t)

	assert.NoError(t, client.EnsureBucket(ctx))
}

func TestS3Client_MissingObject(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(ctx, t)

	_, err := client.HeadObject(ctx, "snapshots/missing.json")
	assert.Error(t, err)
}
