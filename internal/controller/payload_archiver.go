package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/booksync/quickbooks-connector/internal/config"
	"github.com/booksync/quickbooks-connector/internal/domain"
	"github.com/booksync/quickbooks-connector/internal/platform/logger"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PayloadArchiver stores the raw webhook payloads so that a synchronization
// dispute can be settled against what the provider actually sent.
type PayloadArchiver interface {
	Archive(ctx context.Context, realmID domain.RealmID, payload []byte) error
}

func NewPayloadArchiver(implName string, cfg *config.Config) (PayloadArchiver, error) {
	switch implName {
	case "noop":
		return &NoopPayloadArchiver{}, nil
	case "s3":
		return NewS3PayloadArchiver(cfg)
	default:
		return nil, errors.New("Invalid PayloadArchiver impl requested: " + implName)
	}
}

type NoopPayloadArchiver struct {
}

func (a *NoopPayloadArchiver) Archive(ctx context.Context, realmID domain.RealmID, payload []byte) error {
	return nil
}

type S3PayloadArchiver struct {
	uploader *s3manager.Uploader
	bucket   string
}

func NewS3PayloadArchiver(cfg *config.Config) (*S3PayloadArchiver, error) {

	awsSession, err := session.NewSession(aws.NewConfig().WithRegion(cfg.AwsRegion))
	if err != nil {
		logger.LogError("Unable to create AWS session for payload archiver", err)
		return nil, err
	}

	return &S3PayloadArchiver{
		uploader: s3manager.NewUploader(awsSession),
		bucket:   cfg.PayloadArchiveBucket,
	}, nil
}

func (a *S3PayloadArchiver) Archive(ctx context.Context, realmID domain.RealmID, payload []byte) error {

	key := fmt.Sprintf("%s/%s-%s.json", realmID, time.Now().UTC().Format("20060102T150405Z"), uuid.NewString())

	_, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"error": err, "realm_id": realmID, "key": key}).Error("Unable to archive webhook payload")
		return err
	}

	logger.Log.WithFields(logrus.Fields{"realm_id": realmID, "key": key}).Debug("Archived webhook payload")

	return nil
}
