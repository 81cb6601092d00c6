package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	. "github.com/smartystreets/goconvey/convey"
)

// pagedListClient serves a canned, paginated bucket listing.
type pagedListClient struct {
	pages []*s3.ListObjectsV2Output
	calls int
	err   error
}

func (p *pagedListClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := p.pages[p.calls]
	p.calls++
	return out, nil
}

func object(key string, modified time.Time) types.Object {
	return types.Object{
		Key:          aws.String(key),
		Size:         aws.Int64(128),
		LastModified: aws.Time(modified),
	}
}

func TestS3Listing(t *testing.T) {
	Convey("Given a bucket listing spread over several pages", t, func() {
		ctx := context.Background()
		day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		day2 := day1.Add(24 * time.Hour)

		client := &pagedListClient{
			pages: []*s3.ListObjectsV2Output{
				{
					Contents: []types.Object{
						object("mongovault/app_20240102_000000_bbbbbbbb.archive", day2),
						object("mongovault/app_20240102_000000_aaaaaaaa.archive", day2),
					},
					IsTruncated:           aws.Bool(true),
					NextContinuationToken: aws.String("next"),
				},
				{
					Contents: []types.Object{
						object("mongovault/app_20240101_000000_cccccccc.archive", day1),
						object("mongovault/manifest.json", day1),
					},
					IsTruncated: aws.Bool(false),
				},
			},
		}

		Convey("When listing the store", func() {
			archives, err := listBucket(ctx, client, "my-backups", "mongovault")

			Convey("It should walk every page", func() {
				So(err, ShouldBeNil)
				So(client.calls, ShouldEqual, 2)
				So(len(archives), ShouldEqual, 3)
			})

			Convey("It should order by creation time, breaking ties by id", func() {
				So(err, ShouldBeNil)
				So(archives[0].ID, ShouldEqual, "app_20240101_000000_cccccccc.archive")
				So(archives[1].ID, ShouldEqual, "app_20240102_000000_aaaaaaaa.archive")
				So(archives[2].ID, ShouldEqual, "app_20240102_000000_bbbbbbbb.archive")
			})

			Convey("Foreign objects under the prefix should be skipped", func() {
				So(err, ShouldBeNil)
				for _, a := range archives {
					So(a.ID, ShouldNotEqual, "manifest.json")
				}
			})
		})

		Convey("When the listing fails mid-walk", func() {
			broken := &pagedListClient{err: errors.New("access denied")}
			_, err := listBucket(ctx, broken, "my-backups", "mongovault")

			Convey("It should surface the error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "access denied")
			})
		})
	})
}
