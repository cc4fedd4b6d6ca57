// Package assets archives edition PDFs in S3 and resolves their public links.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mwb/internal/config"
	"mwb/internal/logging"
)

const pdfPrefix = "mwb_pdfs"

var ErrDisabled = errors.New("asset store not configured")

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Store struct {
	client     S3API
	presigner  Presigner
	bucket     string
	region     string
	publicBase string
	presignTTL time.Duration
	log        *logging.Logger
}

type Options struct {
	Bucket     string
	Region     string
	PublicBase string
	PresignTTL time.Duration
}

func NewStore(client S3API, presigner Presigner, opts Options, log *logging.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	return &Store{
		client:     client,
		presigner:  presigner,
		bucket:     strings.TrimSpace(opts.Bucket),
		region:     opts.Region,
		publicBase: strings.TrimRight(strings.TrimSpace(opts.PublicBase), "/"),
		presignTTL: opts.PresignTTL,
		log:        log,
	}
}

// FromConfig builds a store from ASSET_* settings. Without a bucket the store
// is disabled and every call returns ErrDisabled.
func FromConfig(ctx context.Context, cfg config.Config, log *logging.Logger) (*Store, error) {
	opts := Options{
		Bucket:     cfg.AssetBucket,
		Region:     cfg.AssetRegion,
		PublicBase: cfg.AssetPublicBase,
		PresignTTL: time.Duration(cfg.AssetPresignSec) * time.Second,
	}
	if strings.TrimSpace(cfg.AssetBucket) == "" {
		return NewStore(nil, nil, opts, log), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AssetRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return NewStore(client, s3.NewPresignClient(client), opts, log), nil
}

func (s *Store) Enabled() bool {
	return s != nil && s.client != nil && s.bucket != ""
}

// Key is the object key of an issue's edition PDF, e.g. "mwb_pdfs/2026-03.pdf".
func Key(issueKey string) string {
	return pdfPrefix + "/" + strings.TrimSpace(issueKey) + ".pdf"
}

// PutEditionPDF uploads the PDF of an issue, replacing any previous upload.
func (s *Store) PutEditionPDF(ctx context.Context, issueKey string, body []byte) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	key := Key(issueKey)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String("application/pdf"),
		CacheControl: aws.String("public, max-age=3600"),
		Metadata: map[string]string{
			"issue-key":   issueKey,
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	s.log.Info("edition pdf stored", "bucket", s.bucket, "key", key, "bytes", len(body))
	return key, nil
}

// URLFor returns a link to the edition PDF of issueKey: under the public base
// when set, presigned when a TTL is set, else the bucket's virtual-host URL.
func (s *Store) URLFor(ctx context.Context, issueKey string) (string, error) {
	key := Key(issueKey)
	if s != nil && s.publicBase != "" {
		return s.publicBase + "/" + key, nil
	}
	if !s.Enabled() {
		return "", ErrDisabled
	}
	if s.presignTTL > 0 && s.presigner != nil {
		req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.presignTTL))
		if err != nil {
			return "", fmt.Errorf("failed to presign %s: %w", key, err)
		}
		return req.URL, nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
