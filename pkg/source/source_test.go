package source

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/sidkik/packsync/pkg/errors"
	"github.com/sidkik/packsync/pkg/hash"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		base string
		rel  string
		exp  string
	}{
		{
			name: "HTTPSibling",
			base: "https://example.com/pack/pack.toml",
			rel:  "index.toml",
			exp:  "https://example.com/pack/index.toml",
		},
		{
			name: "HTTPSubdirWithSpaces",
			base: "https://example.com/pack/index.toml",
			rel:  "mods/Just Enough Items.pw.toml",
			exp:  "https://example.com/pack/mods/Just%20Enough%20Items.pw.toml",
		},
		{
			name: "HTTPParent",
			base: "https://example.com/pack/mods/a.pw.toml",
			rel:  "../config/a.cfg",
			exp:  "https://example.com/pack/config/a.cfg",
		},
		{
			name: "AbsoluteURL",
			base: "https://example.com/pack/mods/a.pw.toml",
			rel:  "https://cdn.example.com/a.jar",
			exp:  "https://cdn.example.com/a.jar",
		},
		{
			name: "S3",
			base: "s3://bucket/pack/pack.toml",
			rel:  "index.toml",
			exp:  "s3://bucket/pack/index.toml",
		},
		{
			name: "FileURL",
			base: "file:///srv/pack/pack.toml",
			rel:  "mods/a.pw.toml",
			exp:  "file:///srv/pack/mods/a.pw.toml",
		},
		{
			name: "LocalPath",
			base: "/srv/pack/pack.toml",
			rel:  "mods/a.pw.toml",
			exp:  "/srv/pack/mods/a.pw.toml",
		},
		{
			name: "LocalAbsolute",
			base: "/srv/pack/pack.toml",
			rel:  "/other/index.toml",
			exp:  "/other/index.toml",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			resolved, err := Resolve(test.base, test.rel)
			assert.NoError(t, err)
			assert.Equal(t, test.exp, resolved)
		})
	}

	_, err := Resolve("/srv/pack/pack.toml", "")
	assert.Equal(t, errors.MissingFieldError{Field: "location"}, err)
}

func TestFileSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/srv/pack/pack.toml", []byte("name = 'demo'"), 0644))

	src := &FileSource{Fs: fs}
	for _, location := range []string{"/srv/pack/pack.toml", "file:///srv/pack/pack.toml"} {
		stream, err := src.Open(context.Background(), location)
		require.NoError(t, err, location)
		contents, err := ioutil.ReadAll(stream)
		stream.Close()
		assert.NoError(t, err)
		assert.Equal(t, "name = 'demo'", string(contents))
	}

	_, err := src.Open(context.Background(), "/srv/pack/missing.toml")
	assert.Equal(t, errors.FileNotFound{Path: "/srv/pack/missing.toml"}, err)
}

func TestHTTPSourceRetries(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "packsync/"))
		if atomic.AddInt32(&requests, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("contents"))
	}))
	defer ts.Close()

	src := &HTTPSource{Client: ts.Client(), Backoff: fastBackoff}
	stream, err := src.Open(context.Background(), ts.URL+"/file")
	require.NoError(t, err)
	defer stream.Close()

	contents, err := ioutil.ReadAll(stream)
	assert.NoError(t, err)
	assert.Equal(t, "contents", string(contents))
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}

func TestHTTPSourceNotFound(t *testing.T) {
	var requests int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.NotFound(w, r)
	}))
	defer ts.Close()

	src := &HTTPSource{Client: ts.Client(), Backoff: fastBackoff}
	_, err := src.Open(context.Background(), ts.URL+"/missing")

	var statusErr errors.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "404s aren't retried")
}

func TestHTTPSourceRetriesExhausted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	src := &HTTPSource{Client: ts.Client(), Backoff: fastBackoff}
	_, err := src.Open(context.Background(), ts.URL)

	var statusErr errors.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestHTTPSourceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &HTTPSource{Client: http.DefaultClient, Backoff: fastBackoff}
	_, err := src.Open(ctx, "http://127.0.0.1:1/never")
	assert.Equal(t, context.Canceled, err)
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput,
	optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(*params.Bucket, *params.Key)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func TestS3Source(t *testing.T) {
	client := &mockS3{}
	client.On("GetObject", "bucket", "pack/index.toml").Return(&s3.GetObjectOutput{
		Body: ioutil.NopCloser(strings.NewReader("index")),
	}, nil)
	client.On("GetObject", "bucket", "pack/missing").Return(nil, assert.AnError)

	src := NewS3SourceWithClient(client)
	stream, err := src.Open(context.Background(), "s3://bucket/pack/index.toml")
	require.NoError(t, err)
	contents, err := ioutil.ReadAll(stream)
	assert.NoError(t, err)
	assert.Equal(t, "index", string(contents))

	_, err = src.Open(context.Background(), "s3://bucket/pack/missing")
	assert.Error(t, err)

	_, err = src.Open(context.Background(), "s3://bucket")
	assert.Error(t, err)
	client.AssertExpectations(t)
}

func TestRouter(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pack.toml", []byte("local"), 0644))

	client := &mockS3{}
	client.On("GetObject", "bucket", "pack.toml").Return(&s3.GetObjectOutput{
		Body: ioutil.NopCloser(strings.NewReader("s3")),
	}, nil)

	router := NewRouter(NewHTTPSource(), &FileSource{Fs: fs}, NewS3SourceWithClient(client))
	for location, exp := range map[string]string{
		"/pack.toml":            "local",
		"file:///pack.toml":     "local",
		"s3://bucket/pack.toml": "s3",
	} {
		stream, err := router.Open(context.Background(), location)
		require.NoError(t, err, location)
		contents, _ := ioutil.ReadAll(stream)
		stream.Close()
		assert.Equal(t, exp, string(contents), location)
	}

	_, err := router.Open(context.Background(), "ftp://example.com/pack.toml")
	assert.EqualError(t, err, `unsupported location scheme "ftp"`)
}

func TestFetchVerified(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/pack.toml", []byte("hello"), 0644))
	src := &FileSource{Fs: fs}

	// The decoder only reads part of the stream, but the hash still covers
	// everything.
	sum, err := FetchVerified(context.Background(), src, "/pack.toml", "sha256",
		func(r io.Reader) error {
			_, err := io.ReadFull(r, make([]byte, 2))
			return err
		})
	require.NoError(t, err)

	exp, err := hash.Parse("sha256", "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	require.NoError(t, err)
	assert.True(t, exp.Equal(sum))

	_, err = FetchVerified(context.Background(), src, "/pack.toml", "sha256",
		func(r io.Reader) error { return assert.AnError })
	assert.True(t, errors.Is(err, assert.AnError))

	_, err = FetchVerified(context.Background(), src, "/pack.toml", "crc",
		func(r io.Reader) error { return nil })
	assert.Equal(t, errors.UnsupportedHashFormatError{Format: "crc"}, err)

	_, err = FetchVerified(context.Background(), src, "/missing.toml", "sha256",
		func(r io.Reader) error { return nil })
	assert.Error(t, err)
}

var fastBackoff = wait.Backoff{Duration: time.Millisecond, Factor: 1, Steps: 3}
