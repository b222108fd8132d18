package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
)

const maxAvatarBytes = 5 * 1024 * 1024

type S3Client struct {
	client     *s3.Client
	bucket     string
	publicURL  string
	cdnBase    string
	httpClient *http.Client
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	PublicURL string
	Region    string
}

func NewS3Client(cfg S3Config) (*S3Client, error) {
	region := cfg.Region
	if region == "" {
		region = "auto" // R2
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Client{
		client:     client,
		bucket:     cfg.Bucket,
		publicURL:  cfg.PublicURL,
		cdnBase:    "https://cdn.discordapp.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// MirrorAvatar downloads the avatar from the Discord CDN, normalizes it to a
// 512px PNG and stores it under a stable key, so relinking the same avatar
// overwrites rather than accumulates.
func (s *S3Client) MirrorAvatar(ctx context.Context, discordID, avatarHash string) (string, error) {
	imageData, err := s.downloadAvatar(ctx, discordID, avatarHash)
	if err != nil {
		return "", fmt.Errorf("failed to download avatar: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	img = imaging.Fit(img, 512, 512, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	objectKey := fmt.Sprintf("avatars/%s/%s.png", discordID, avatarHash)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("image/png"),
		Metadata: map[string]string{
			"discord_id":  discordID,
			"avatar_hash": avatarHash,
			"image_hash":  hex.EncodeToString(sum[:]),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to storage: %w", err)
	}

	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, objectKey), nil
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, objectKey), nil
}

func (s *S3Client) downloadAvatar(ctx context.Context, discordID, avatarHash string) ([]byte, error) {
	url := fmt.Sprintf("%s/avatars/%s/%s.png?size=1024", s.cdnBase, discordID, avatarHash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cdn responded with status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "image/png" && contentType != "image/jpeg" && contentType != "image/webp" {
		return nil, fmt.Errorf("invalid content type: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAvatarBytes {
		return nil, fmt.Errorf("image too large: %d bytes", len(data))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	return data, nil
}
