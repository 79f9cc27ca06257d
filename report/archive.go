package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/mmdatafocus/taxsales_validator/utils"
	"github.com/sirupsen/logrus"
)

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, objectName string, r io.Reader) error
}

type gcsUploader struct {
	client *storage.Client
	bucket string
}

func (u *gcsUploader) Upload(ctx context.Context, objectName string, r io.Reader) error {
	return utils.UploadFileToGCS(ctx, u.client, u.bucket, objectName, r)
}

// Archiver copies finished reports to object storage under <prefix>/<period>/.
type Archiver struct {
	uploader Uploader
	prefix   string
	logger   *logrus.Logger
}

func NewArchiver(uploader Uploader, prefix string, logger *logrus.Logger) *Archiver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Archiver{uploader: uploader, prefix: prefix, logger: logger}
}

// NewGCSArchiver returns the archiver and a close func for the underlying client.
func NewGCSArchiver(ctx context.Context, bucket, credJSON string, logger *logrus.Logger) (*Archiver, func() error, error) {
	client, err := utils.GetGCSClient(ctx, credJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("gcs client: %w", err)
	}
	return NewArchiver(&gcsUploader{client: client, bucket: bucket}, "reports", logger), client.Close, nil
}

// ObjectName is where Archive stores localPath for period.
func (a *Archiver) ObjectName(period, localPath string) string {
	if period == "" {
		period = "unscoped"
	}
	return path.Join(a.prefix, period, filepath.Base(localPath))
}

func (a *Archiver) Archive(ctx context.Context, period, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := a.ObjectName(period, localPath)
	if err := a.uploader.Upload(ctx, name, f); err != nil {
		return "", fmt.Errorf("archive %s: %w", localPath, err)
	}
	a.logger.WithFields(logrus.Fields{
		"module": "report",
		"object": name,
	}).Info("report archived")
	return name, nil
}
