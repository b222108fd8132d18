package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Simulator stands in for the real bucket in dev environments: it returns a
// deterministic URL without uploading anything.
type Simulator struct {
	bucket   string
	endpoint string
}

func NewSimulator(bucket, endpoint string) *Simulator {
	return &Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (s *Simulator) MirrorAvatar(_ context.Context, discordID, avatarHash string) (string, error) {
	if discordID == "" || avatarHash == "" {
		return "", fmt.Errorf("missing discord id or avatar hash")
	}

	sum := sha256.Sum256([]byte(discordID + ":" + avatarHash))
	key := hex.EncodeToString(sum[:])

	ep := s.endpoint
	if ep == "" {
		ep = "https://r2.example.invalid"
	}
	bucket := s.bucket
	if bucket == "" {
		bucket = "clubsite"
	}

	return fmt.Sprintf("%s/%s/avatars/%s.png", strings.TrimRight(ep, "/"), bucket, key), nil
}
