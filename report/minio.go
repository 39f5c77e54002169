package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/lcpu-club/hpccontainer/common/consts"
	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type objectPutter interface {
	PutObject(
		ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
}

// MinIOReporter stores run reports as objects, one per container, grouped
// by job.
type MinIOReporter struct {
	minio   objectPutter
	bucket  string
	timeout time.Duration
}

func NewMinIOReporter(conf *configure.MinIOConfigure) (*MinIOReporter, error) {
	accessKey, secretKey := "", ""
	if conf.Credentials != nil {
		accessKey, secretKey = conf.Credentials.AccessKey, conf.Credentials.SecretKey
	}
	client, err := minio.New(conf.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: conf.SSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinIOReporter{minio: client, bucket: conf.Bucket, timeout: conf.Timeout.Std()}, nil
}

func (r *MinIOReporter) Name() string {
	return "minio"
}

// ObjectKey is where the report of a container is stored in the bucket.
func ObjectKey(report *models.RunReport) string {
	return path.Join(
		report.JobID,
		fmt.Sprintf("%v-%v-%v", report.Host, report.ContainerPID, consts.RunReportFileSuffix),
	)
}

func (r *MinIOReporter) Report(ctx context.Context, report *models.RunReport) error {
	body, err := encode(report)
	if err != nil {
		return err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	_, err = r.minio.PutObject(
		ctx, r.bucket, ObjectKey(report), bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: consts.RunReportMIMEType},
	)
	return err
}

func (r *MinIOReporter) Close() error {
	return nil
}
