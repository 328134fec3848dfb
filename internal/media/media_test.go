package media

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowedContentType(t *testing.T) {
	assert.True(t, IsAllowedContentType("image/png"))
	assert.False(t, IsAllowedContentType("application/pdf"))
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage("http://localhost:8010/")
	ctx := context.Background()

	res, err := s.Upload(ctx, &UploadInput{Key: "products/a.png", ContentType: "image/png", Size: 3, Data: bytes.NewReader([]byte("png"))})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8010/media/products/a.png", res.URL)

	data, ok := s.Get("products/a.png")
	require.True(t, ok)
	assert.Equal(t, []byte("png"), data)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/products/a.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())

	require.NoError(t, s.Delete(ctx, "products/a.png"))

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/products/a.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Error(t, s.Delete(ctx, "products/a.png"))
}

// fakeS3 records path-style object requests.
type fakeS3 struct {
	mu      sync.Mutex
	method  string
	path    string
	ctype   string
	deleted string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.Copy(io.Discard, r.Body)
	switch r.Method {
	case http.MethodPut:
		f.method, f.path, f.ctype = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		f.deleted = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3(t *testing.T, cfg S3Config) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg.Endpoint = srv.URL
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		}),
	})
	return NewS3StorageWithClient(client, cfg), fake
}

func TestS3Storage_UploadAndDelete(t *testing.T) {
	s, fake := newTestS3(t, S3Config{Bucket: "images", Region: "us-east-1"})
	ctx := context.Background()

	body := []byte("fake-jpeg")
	res, err := s.Upload(ctx, &UploadInput{Key: "products/p1.jpg", ContentType: "image/jpeg", Size: int64(len(body)), Data: bytes.NewReader(body)})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, fake.method)
	assert.Equal(t, "/images/products/p1.jpg", fake.path)
	assert.Equal(t, "image/jpeg", fake.ctype)
	assert.Equal(t, s.cfg.Endpoint+"/images/products/p1.jpg", res.URL)

	require.NoError(t, s.Delete(ctx, "products/p1.jpg"))
	assert.Equal(t, "/images/products/p1.jpg", fake.deleted)
}

func TestS3Storage_ObjectURL(t *testing.T) {
	s := NewS3StorageWithClient(nil, S3Config{Bucket: "images", Region: "eu-west-1"})
	assert.Equal(t, "https://images.s3.eu-west-1.amazonaws.com/a.png", s.objectURL("a.png"))

	cdn := NewS3StorageWithClient(nil, S3Config{Bucket: "images", PublicBaseURL: "https://cdn.example.com/"})
	assert.Equal(t, "https://cdn.example.com/a.png", cdn.objectURL("a.png"))
}
