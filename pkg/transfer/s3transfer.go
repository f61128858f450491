package transfer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chenjianlong/ftpbackup/pkg/hashutils"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Transfer treats a key prefix of one bucket as the remote directory. The
// minio client is safe for concurrent use, only the prefix needs guarding.
type S3Transfer struct {
	client     *minio.Client
	bucketName string

	mu     sync.RWMutex
	prefix string
}

func NewS3Transfer(endpoint, bucketName, accessKeyID, secretAccessKey string, secure bool) (RemoteSession, error) {
	s3Client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: secure,
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	exists, err := s3Client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return nil, fmt.Errorf("%w: bucket %s: %v", ErrConnection, bucketName, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: bucket %s does not exist", ErrConnection, bucketName)
	}

	transfer := new(S3Transfer)
	transfer.client = s3Client
	transfer.bucketName = bucketName
	return transfer, nil
}

// ChangeDir sets the prefix used for all later calls. Paths are relative to
// the bucket root.
func (t *S3Transfer) ChangeDir(dir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prefix = dirPrefix(dir)
	return nil
}

func (t *S3Transfer) List(dir string) ([]string, error) {
	prefix := t.key(dirPrefix(dir))
	objectCh := t.client.ListObjects(context.Background(), t.bucketName, minio.ListObjectsOptions{Prefix: prefix})

	var names []string
	for obj := range objectCh {
		if obj.Err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", ErrConnection, prefix, obj.Err)
		}

		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	return names, nil
}

func (t *S3Transfer) Fetch(name string, w io.Writer) (int64, error) {
	key := t.key(name)
	obj, err := t.client.GetObject(context.Background(), t.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return 0, s3Error("get", key, err)
	}
	defer obj.Close()

	tracker := &writeTracker{w: w}
	n, err := io.Copy(tracker, obj)
	if tracker.err != nil {
		return n, tracker.err
	}
	if err != nil {
		return n, s3Error("get", key, err)
	}
	return n, nil
}

// RemoteDigest reports the ETag, which is the MD5 of the content for objects
// uploaded in a single part. Multipart ETags carry a "-N" suffix and are not
// content digests.
func (t *S3Transfer) RemoteDigest(name, algo string) (string, error) {
	if algo != "" && strings.ToLower(algo) != hashutils.MD5 {
		return "", fmt.Errorf("%w: %s for %s", ErrUnsupported, algo, name)
	}

	key := t.key(name)
	info, err := t.client.StatObject(context.Background(), t.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		return "", s3Error("stat", key, err)
	}

	etag := strings.Trim(info.ETag, `"`)
	if !hashutils.IsHex(etag, hashutils.MD5) {
		return "", fmt.Errorf("%w: multipart object %s", ErrUnsupported, key)
	}
	return strings.ToLower(etag), nil
}

func (t *S3Transfer) Close() error {
	return nil
}

func (t *S3Transfer) key(name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.prefix + name
}

func dirPrefix(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" || dir == "." {
		return ""
	}
	return dir + "/"
}

func s3Error(op, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%w: %s %s: %v", ErrNotFound, op, key, err)
	}

	return fmt.Errorf("%w: %s %s: %v", ErrConnection, op, key, err)
}
