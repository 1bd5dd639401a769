/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tally

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/blnkfinance/tally/config"
)

// Archiver keeps the raw statement payload of an import for audit.
type Archiver interface {
	Archive(ctx context.Context, batchID, fileName string, data []byte) (string, error)
}

// S3Archiver uploads raw payloads to an S3 bucket, one object per batch.
type S3Archiver struct {
	bucket   string
	uploader *s3manager.Uploader
}

// NewArchiver returns nil when no bucket is configured.
func NewArchiver(cfg config.ArchiveConfig) (Archiver, error) {
	if cfg.S3BucketName == "" {
		return nil, nil
	}

	awsConfig := &aws.Config{Region: aws.String(cfg.S3Region)}
	if cfg.AwsAccessKeyId != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AwsAccessKeyId, cfg.AwsSecretAccessKey, "")
	}
	if cfg.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Archiver{bucket: cfg.S3BucketName, uploader: s3manager.NewUploader(sess)}, nil
}

// ArchiveKey is the object key a batch's payload is stored under.
func ArchiveKey(batchID, fileName string, at time.Time) string {
	if fileName == "" {
		fileName = "statement"
	}
	return path.Join("imports", at.UTC().Format("2006/01/02"), batchID, path.Base(fileName))
}

func (a *S3Archiver) Archive(ctx context.Context, batchID, fileName string, data []byte) (string, error) {
	key := ArchiveKey(batchID, fileName, time.Now())
	_, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}
