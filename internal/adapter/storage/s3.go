package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appconfig "github.com/kevinnadar22/mongovault/internal/config"
	"github.com/kevinnadar22/mongovault/internal/domain"
)

// S3Store keeps archives as S3 objects. Multipart uploads commit atomically
// on completion, which carries the no-partial-visibility guarantee.
type S3Store struct {
	client   *s3.Client
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

func NewS3(cfg *appconfig.StoreConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	uploader := s3manager.NewUploader(client)

	return &S3Store{
		client:   client,
		uploader: uploader,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (s *S3Store) Put(ctx context.Context, database string, r io.Reader) (domain.Archive, error) {
	id := newArchiveID(database)
	key := s.key(id)

	counted := &countingReader{r: r}
	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   counted,
	})
	if err != nil {
		return domain.Archive{}, fmt.Errorf("failed to upload to S3: %w", err)
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return domain.Archive{}, fmt.Errorf("failed to stat uploaded archive: %w", err)
	}

	return domain.Archive{
		ID:        id,
		Database:  database,
		Size:      counted.n,
		CreatedAt: aws.ToTime(head.LastModified),
		Location:  result.Location,
	}, nil
}

func (s *S3Store) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	key := s.key(id)

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("archive %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch from S3: %w", err)
	}

	return resp.Body, nil
}

func (s *S3Store) List(ctx context.Context) ([]domain.Archive, error) {
	return listBucket(ctx, s.client, s.bucket, s.prefix)
}

// listBucket walks every page of the bucket listing. One ListObjectsV2 call
// caps out at 1000 keys, so stopping after the first page would hide older
// archives from the sweeper.
func listBucket(ctx context.Context, client s3.ListObjectsV2APIClient, bucket, prefix string) ([]domain.Archive, error) {
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: &bucket,
		Prefix: &prefix,
	})

	var archives []domain.Archive
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			name = strings.TrimPrefix(name, "/")
			if name == "" {
				continue
			}

			database, err := parseArchiveID(name)
			if err != nil {
				continue
			}

			archives = append(archives, domain.Archive{
				ID:        name,
				Database:  database,
				Size:      aws.ToInt64(obj.Size),
				CreatedAt: aws.ToTime(obj.LastModified),
				Location:  fmt.Sprintf("s3://%s/%s", bucket, aws.ToString(obj.Key)),
			})
		}
	}

	sortArchives(archives)
	return archives, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	key := s.key(id)

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

func (s *S3Store) key(id string) string {
	return path.Join(s.prefix, id)
}
