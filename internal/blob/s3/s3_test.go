package s3blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/toslens/internal/domain"
)

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("https://minio:9000", false))
	assert.Equal(t, "https://e2.example.com", normaliseEndpoint("e2.example.com", true))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("localhost:9000", false))
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.ErrorContains(t, err, "bucket")
	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	assert.ErrorContains(t, err, "region")
}

// fakeS3 serves the two read calls the Reader makes.
func fakeS3(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
			w.Header().Set("Content-Type", "application/xml")
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>toslens</Name>
  <Prefix>watchlist/</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>watchlist/watchlist-20240101T000000Z.json</Key><Size>42</Size><LastModified>2024-01-01T00:00:00.000Z</LastModified></Contents>
  <Contents><Key>watchlist/watchlist-20240201T000000Z.json</Key><Size>84</Size><LastModified>2024-02-01T00:00:00.000Z</LastModified></Contents>
</ListBucketResult>`)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/present.json"):
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"addresses":[]}`)
		case r.Method == http.MethodGet:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFakeReader(t *testing.T) *Reader {
	t.Helper()
	srv := fakeS3(t)
	c, err := New(context.Background(), ClientConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         "toslens",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	return NewReader(c)
}

func TestReaderList(t *testing.T) {
	infos, err := newFakeReader(t).List(context.Background(), "watchlist/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "watchlist/watchlist-20240201T000000Z.json", infos[1].Path)
	assert.EqualValues(t, 84, infos[1].Size)
	assert.Equal(t, 2024, infos[1].LastModified.Year())
}

func TestReaderGet(t *testing.T) {
	r := newFakeReader(t)

	body, err := r.Get(context.Background(), "watchlist/present.json")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.JSONEq(t, `{"addresses":[]}`, string(data))

	_, err = r.Get(context.Background(), "watchlist/missing.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
