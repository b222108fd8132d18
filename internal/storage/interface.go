package storage

import "context"

// AvatarMirror copies a Discord avatar into storage we control and returns
// the public URL. Callers treat failures as best-effort.
type AvatarMirror interface {
	MirrorAvatar(ctx context.Context, discordID, avatarHash string) (string, error)
}
