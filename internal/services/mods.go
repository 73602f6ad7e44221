package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/imyashkale/mcserver/internal/models"
)

// Object store layout
const (
	ModsPrefix       = "mods/"
	ServerModsPrefix = ModsPrefix + "server/"
	ClientModsPrefix = ModsPrefix + "client/"
)

// ModService lists the mods stored in the server bucket
type ModService struct {
	s3        s3.ListObjectsV2APIClient
	presigner Presigner
	bucket    string
	linkTTL   time.Duration
	now       func() time.Time
}

// NewModService creates a new mod service. presigner may be nil when
// download links are never requested.
func NewModService(s3Client s3.ListObjectsV2APIClient, presigner Presigner, bucket string, linkTTL time.Duration) *ModService {
	return &ModService{
		s3:        s3Client,
		presigner: presigner,
		bucket:    bucket,
		linkTTL:   linkTTL,
		now:       time.Now,
	}
}

// ListMods lists every object under the mods prefix in key order and sorts
// them into server, client and unpartitioned mods. With signLinks set, each
// client mod gets a download link valid for the configured TTL.
func (ms *ModService) ListMods(ctx context.Context, signLinks bool) (*models.ModListing, error) {
	listing := &models.ModListing{
		Server: []models.ModFile{},
		Client: []models.ModFile{},
		Other:  []models.ModFile{},
	}

	paginator := s3.NewListObjectsV2Paginator(ms.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(ms.bucket),
		Prefix: aws.String(ModsPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in s3://%s/%s: %w", ms.bucket, ModsPrefix, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			// folder placeholders created by the console
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}

			switch {
			case strings.HasPrefix(key, ServerModsPrefix):
				listing.Server = append(listing.Server, modFile(key, ServerModsPrefix))
			case strings.HasPrefix(key, ClientModsPrefix):
				listing.Client = append(listing.Client, modFile(key, ClientModsPrefix))
			case strings.HasPrefix(key, ModsPrefix):
				listing.Other = append(listing.Other, modFile(key, ModsPrefix))
			}
		}
	}

	if signLinks {
		for i := range listing.Client {
			if err := ms.sign(ctx, &listing.Client[i]); err != nil {
				return nil, err
			}
		}
	}

	return listing, nil
}

// sign attaches a presigned GET link to a mod file
func (ms *ModService) sign(ctx context.Context, mod *models.ModFile) error {
	if ms.presigner == nil {
		return fmt.Errorf("failed to sign %s: no presigner configured", mod.Key)
	}

	req, err := ms.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(ms.bucket),
		Key:                        aws.String(mod.Key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(mod.Key))),
	}, s3.WithPresignExpires(ms.linkTTL))
	if err != nil {
		return fmt.Errorf("failed to sign download link for %s: %w", mod.Key, err)
	}

	expiresAt := ms.now().Add(ms.linkTTL).UTC()
	mod.DownloadURL = req.URL
	mod.ExpiresAt = &expiresAt
	return nil
}

func modFile(key, prefix string) models.ModFile {
	return models.ModFile{
		Name: strings.TrimPrefix(key, prefix),
		Key:  key,
	}
}
