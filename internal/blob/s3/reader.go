package s3blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// Reader inspects stored objects; the archiver uses it to confirm an upload
// landed intact before deleting the source rows.
type Reader struct {
	c *Client
}

// NewReader creates a Reader for c's bucket and prefix.
func NewReader(c *Client) *Reader {
	return &Reader{c: c}
}

// Size returns the stored length of the object at path, or
// domain.ErrNotFound.
func (r *Reader) Size(ctx context.Context, path string) (int64, error) {
	out, err := r.c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(r.c.key(path)),
	})
	switch {
	case missing(err):
		return 0, domain.ErrNotFound
	case err != nil:
		return 0, domain.E(domain.KindTransient, "s3blob.head", fmt.Errorf("%s: %w", path, err))
	}
	return aws.ToInt64(out.ContentLength), nil
}

// missing matches the typed not-found errors and the bare 404 some
// S3-compatible providers return for HEAD.
func missing(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == 404
}
