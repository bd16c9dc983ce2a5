package source

import (
	"context"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/sidkik/packsync/pkg/errors"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput,
		optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures the S3 client. Credentials come from the default AWS
// credential chain.
type S3Config struct {
	Region string

	// Endpoint overrides the S3 endpoint, e.g. for MinIO. Path style
	// addressing is used when it's set.
	Endpoint string
}

// S3Source reads s3://bucket/key locations. The client is created on first
// use so that packs that don't reference S3 never load AWS configuration.
type S3Source struct {
	cfg S3Config

	once      sync.Once
	client    S3API
	clientErr error
}

// NewS3Source returns an S3Source that lazily connects using `cfg`.
func NewS3Source(cfg S3Config) *S3Source {
	return &S3Source{cfg: cfg}
}

// NewS3SourceWithClient returns an S3Source that uses `client`.
func NewS3SourceWithClient(client S3API) *S3Source {
	s := &S3Source{client: client}
	s.once.Do(func() {})
	return s
}

// Resolve implements Source.
func (s *S3Source) Resolve(base, rel string) (string, error) {
	return Resolve(base, rel)
}

// Open implements Source.
func (s *S3Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, err
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, errors.WithContext(err, "connect to s3")
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.WithContext(err, "get object")
	}
	return out.Body, nil
}

func (s *S3Source) getClient(ctx context.Context) (S3API, error) {
	s.once.Do(func() {
		var opts []func(*awsConfig.LoadOptions) error
		if s.cfg.Region != "" {
			opts = append(opts, awsConfig.WithRegion(s.cfg.Region))
		}

		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			s.clientErr = errors.WithContext(err, "load aws config")
			return
		}

		endpoint := s.cfg.Endpoint
		s.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			}
		})
	})
	return s.client, s.clientErr
}

func parseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", errors.WithContext(err, "parse s3 location")
	}

	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", errors.Errorf("s3 location %q must be of the form s3://bucket/key", location)
	}
	return bucket, key, nil
}
