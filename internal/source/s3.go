package source

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/concentricsky/djenesis/internal/errors"
)

// S3API is the subset of the S3 client used to fetch templates.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// s3Downloads bounds concurrent GetObject calls.
const s3Downloads = 8

type s3Source struct {
	bucket string
	prefix string
	opts   Options
}

func (s *s3Source) Kind() string { return KindS3 }

func (s *s3Source) Name() string {
	if s.prefix == "" {
		return s.bucket
	}
	return baseName(s.prefix)
}

func (s *s3Source) client(ctx context.Context) (S3API, error) {
	if s.opts.S3Client != nil {
		return s.opts.S3Client, nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if s.opts.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(s.opts.S3Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.opts.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(s.opts.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (s *s3Source) Open(ctx context.Context) (fs.FS, func(), error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, nil, errors.New("E152").WithDetail("loading AWS configuration").Wrap(err)
	}

	prefix := s.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, errors.New("E152").
				WithDetail("listing s3://" + s.bucket + "/" + prefix).
				Wrap(err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, nil, errors.New("E152").
			WithDetail("no objects under s3://" + s.bucket + "/" + prefix)
	}

	dir, cleanup, err := tempDir(KindS3)
	if err != nil {
		return nil, nil, err
	}

	log := s.opts.logger()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s3Downloads)
	for _, key := range keys {
		rel := strings.TrimPrefix(key, prefix)
		if !filepath.IsLocal(rel) {
			cleanup()
			return nil, nil, errors.New("E152").WithDetail("object key '" + key + "' escapes the template root")
		}
		g.Go(func() error {
			log.Debug("downloading template object", "bucket", s.bucket, "key", key)
			return download(gctx, client, s.bucket, key, filepath.Join(dir, filepath.FromSlash(rel)))
		})
	}
	if err := g.Wait(); err != nil {
		cleanup()
		return nil, nil, errors.New("E152").WithDetail("downloading s3://" + s.bucket + "/" + prefix).Wrap(err)
	}

	return os.DirFS(dir), cleanup, nil
}

func download(ctx context.Context, client S3API, bucket, key, dest string) error {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

