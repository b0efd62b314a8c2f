package remote

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"

	"github.com/MGXlab/cirtap/config"
	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/model"

	s3config "github.com/aws/aws-sdk-go-v2/config"
)

var _ Provider = (*S3Remote)(nil)

// S3API is the slice of the S3 client this backend uses, so tests can
// provide their own implementation.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Remote implements Provider against an S3-hosted copy of the archive.
// Directory semantics are emulated with the "/" delimiter: objects under the
// prefix are files, common prefixes are subdirectories.
type S3Remote struct {
	client  S3API
	config  *config.S3Config
	common  *config.CommonRemoteConfig
	policy  RetryPolicy
	limiter *rate.Limiter
	log     logger.Logger
}

// NewS3Remote creates an S3-backed remote.
func NewS3Remote(cfg *config.S3Config, common *config.CommonRemoteConfig, log logger.Logger) (*S3Remote, error) {
	common.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}
	if log == nil {
		log = logger.NewNoOp()
	}

	// For S3-compatible storage the region is often just a placeholder.
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	s3cfg, err := s3config.LoadDefaultConfig(
		context.TODO(),
		s3config.WithRegion(region),
		s3config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		s3config.WithClientLogMode(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := s3.NewFromConfig(s3cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		// Path-style addressing for S3-compatible storage
		o.UsePathStyle = true
	})

	var limiter *rate.Limiter
	if common.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(common.MaxRPS), common.MaxRPS)
	}

	return &S3Remote{
		client:  client,
		config:  cfg,
		common:  common,
		policy:  DefaultPolicy(common.MaxRetries),
		limiter: limiter,
		log:     log,
	}, nil
}

// NewS3RemoteWithClient wires a custom S3API; used by tests.
func NewS3RemoteWithClient(client S3API, cfg *config.S3Config, common *config.CommonRemoteConfig, log logger.Logger) *S3Remote {
	common.ApplyDefaults()
	if log == nil {
		log = logger.NewNoOp()
	}
	return &S3Remote{
		client: client,
		config: cfg,
		common: common,
		policy: DefaultPolicy(common.MaxRetries),
		log:    log,
	}
}

func (c *S3Remote) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return nil
}

func (c *S3Remote) keyPrefix(dir string) string {
	p := path.Join(c.config.Prefix, dir)
	if p == "." || p == "" {
		return ""
	}
	return p + "/"
}

// List emulates one directory listing, paging through ListObjectsV2 with a
// delimiter and retrying each page per the policy.
func (c *S3Remote) List(ctx context.Context, dir string) ([]model.RemoteEntry, error) {
	prefix := c.keyPrefix(dir)

	var (
		entries           []model.RemoteEntry
		continuationToken *string
	)

	for {
		var resp *s3.ListObjectsV2Output
		err := c.policy.Do(ctx, func(ctx context.Context) error {
			if err := c.wait(ctx); err != nil {
				return err
			}
			reqCtx, cancel := context.WithTimeout(ctx, time.Duration(c.common.TimeoutSeconds)*time.Second)
			defer cancel()

			var callErr error
			resp, callErr = c.client.ListObjectsV2(reqCtx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(c.config.Bucket),
				Prefix:            aws.String(prefix),
				Delimiter:         aws.String("/"),
				ContinuationToken: continuationToken,
			})
			return callErr
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TransientError{Op: "list", Path: dir, Err: err}
		}

		for _, v := range resp.Contents {
			name := strings.TrimPrefix(aws.ToString(v.Key), prefix)
			if name == "" {
				// The prefix itself can appear as a zero-byte marker object
				continue
			}
			entries = append(entries, model.RemoteEntry{
				Name:    name,
				Kind:    model.KindFile,
				Size:    aws.ToInt64(v.Size),
				ModTime: aws.ToTime(v.LastModified),
			})
		}
		for _, cp := range resp.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			entries = append(entries, model.RemoteEntry{
				Name: name,
				Kind: model.KindDir,
			})
		}

		if aws.ToBool(resp.IsTruncated) {
			continuationToken = resp.NextContinuationToken
		} else {
			break
		}
	}

	return entries, nil
}

// Fetch opens one object for reading.
func (c *S3Remote) Fetch(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	key := path.Join(c.config.Prefix, remotePath)

	// The timeout context must outlive this call: the body is streamed by
	// the caller, so cancellation is tied to Close instead.
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(c.common.TimeoutSeconds)*time.Second)

	result, err := c.client.GetObject(reqCtx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}

	return &cancelReader{ReadCloser: result.Body, cancel: cancel}, nil
}

// cancelReader wraps an io.ReadCloser and releases its request context on
// close.
type cancelReader struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *cancelReader) Close() error {
	defer r.cancel()
	return r.ReadCloser.Close()
}

// Close is a no-op; the S3 client holds no persistent sessions.
func (c *S3Remote) Close() error { return nil }
