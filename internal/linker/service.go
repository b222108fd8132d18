package linker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"clubsite/internal/accounts"
	"clubsite/internal/discord"
	"clubsite/internal/logging"
	"clubsite/internal/redis"
	"clubsite/internal/session"
	"clubsite/internal/storage"
)

const (
	// tokenExpiryMargin is subtracted from expires_in so we treat the token
	// as expired before Discord does.
	tokenExpiryMargin = 60 * time.Second

	// profileStaleAfter bounds how old cached profile fields may be before a
	// read triggers a remote refresh.
	profileStaleAfter = 5 * time.Minute

	memberCountCacheTTL = time.Hour
	userCacheTTL        = 5 * time.Minute

	avatarPlaceholder = "/images/avatar-placeholder.png"
	avatarCDNBase     = "https://cdn.discordapp.com/avatars"
)

// ChatAPI is the slice of the Discord client the workflow drives.
type ChatAPI interface {
	FetchSelfProfile(ctx context.Context, accessToken string) (*discord.User, error)
	FetchUserByID(ctx context.Context, userID string) (*discord.User, error)
	FetchMember(ctx context.Context, guildID, userID string) (*discord.Member, error)
	AddMember(ctx context.Context, guildID, userID, accessToken, nick string) error
	RemoveMember(ctx context.Context, guildID, userID string) error
	OpenDMChannel(ctx context.Context, recipientID string) (*discord.Channel, error)
	SendEmbed(ctx context.Context, channelID string, embed discord.Embed) error
	FetchGuildPreview(ctx context.Context, guildID string) (*discord.GuildPreview, error)
}

// AccountStore is the persistence surface the workflow owns.
type AccountStore interface {
	FindByUser(ctx context.Context, userID string) (*accounts.LinkedAccount, error)
	Upsert(ctx context.Context, acct *accounts.LinkedAccount) (*accounts.LinkedAccount, error)
	UpdateProfile(ctx context.Context, id int64, username, discriminator, avatarHash string) error
	Delete(ctx context.Context, id int64) error
}

// OAuthGrant is the relevant part of the OAuth token response the frontend
// hands over after the Discord authorization redirect.
type OAuthGrant struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Profile is the read-model served to the UI.
type Profile struct {
	DiscordID     string `json:"discord_id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	AvatarURL     string `json:"avatar_url"`
}

// MemberCounts mirrors the guild preview numbers shown on the Discord page.
type MemberCounts struct {
	MemberCount int `json:"member_count"`
	OnlineCount int `json:"online_count"`
}

// Service orchestrates linking and unlinking a Discord account: it drives
// the chat API and the account store sequentially, with the single store
// write as the commit point and everything remote after it best-effort.
type Service struct {
	api      ChatAPI
	store    AccountStore
	notifier *Notifier
	mirror   storage.AvatarMirror // optional
	cache    *redis.Client        // optional
	log      *slog.Logger
	guildID  string
	brand    Brand

	now func() time.Time
}

func NewService(log *slog.Logger, api ChatAPI, store AccountStore, guildID string, brand Brand) *Service {
	return &Service{
		api:      api,
		store:    store,
		notifier: NewNotifier(log, api, brand),
		log:      log,
		guildID:  guildID,
		brand:    brand,
		now:      time.Now,
	}
}

// WithCache enables the redis-backed member-count and profile caches.
func (s *Service) WithCache(cache *redis.Client) *Service {
	s.cache = cache
	return s
}

// WithAvatarMirror enables best-effort avatar copies into our own bucket.
func (s *Service) WithAvatarMirror(mirror storage.AvatarMirror) *Service {
	s.mirror = mirror
	return s
}

// Link exchanges the OAuth grant for the Discord profile, upserts the linked
// account (the commit point), then reconciles guild membership and sends a
// welcome DM. Steps after the upsert never fail the call.
func (s *Service) Link(ctx context.Context, sess session.Session, grant OAuthGrant) (*accounts.LinkedAccount, error) {
	if sess.UserID == "" {
		return nil, ErrUnauthenticated
	}

	user, err := s.api.FetchSelfProfile(ctx, grant.AccessToken)
	if err != nil {
		s.log.Warn("link_profile_exchange_failed", "user_id", sess.UserID, "error", err)
		return nil, &UpstreamError{Op: "fetch self profile", Err: err}
	}

	expiresAt := s.now().Add(time.Duration(grant.ExpiresIn)*time.Second - tokenExpiryMargin)

	stored, err := s.store.Upsert(ctx, &accounts.LinkedAccount{
		UserID:        sess.UserID,
		DiscordID:     user.ID,
		Username:      user.Username,
		Discriminator: user.Discriminator,
		Avatar:        user.Avatar,
		AccessToken:   grant.AccessToken,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		s.log.Error("link_upsert_failed", "user_id", sess.UserID, "error", err)
		return nil, &PersistenceError{Op: "upsert linked account", Err: err}
	}

	s.log.Info("account_linked",
		"user_id", sess.UserID,
		"discord_id", user.ID,
		"username", user.Username,
		"token", logging.MaskToken(grant.AccessToken),
	)

	// reconciliação da guilda: só adiciona quem ainda não é membro, pra não
	// renomear quem já está lá
	member, err := s.api.FetchMember(ctx, s.guildID, user.ID)
	switch {
	case err != nil:
		s.log.Warn("guild_membership_check_failed", "discord_id", user.ID, "error", err)
	case member == nil:
		if err := s.api.AddMember(ctx, s.guildID, user.ID, grant.AccessToken, sess.Name); err != nil {
			s.log.Warn("guild_add_failed", "discord_id", user.ID, "error", err)
		} else {
			s.log.Info("guild_member_added", "discord_id", user.ID)
		}
	default:
		s.log.Debug("already_guild_member", "discord_id", user.ID)
	}

	if err := s.notifier.SendDM(ctx, user.ID, welcomeMessage(sess.Name, s.brand.URL)); err != nil {
		s.log.Warn("welcome_dm_failed", "discord_id", user.ID, "error", err)
	}

	return stored, nil
}

// Unlink removes the guild membership and the local record. The remote
// removal and the farewell DM are best-effort; only the local delete (the
// commit point) decides the outcome.
func (s *Service) Unlink(ctx context.Context, sess session.Session) error {
	if sess.UserID == "" {
		return ErrUnauthenticated
	}

	acct, err := s.store.FindByUser(ctx, sess.UserID)
	if err != nil {
		if err == accounts.ErrNoAccount {
			return ErrNotFound
		}
		return &PersistenceError{Op: "find linked account", Err: err}
	}

	member, err := s.api.FetchMember(ctx, s.guildID, acct.DiscordID)
	switch {
	case err != nil:
		s.log.Warn("guild_membership_check_failed", "discord_id", acct.DiscordID, "error", err)
	case member != nil:
		if err := s.api.RemoveMember(ctx, s.guildID, acct.DiscordID); err != nil {
			// estado remoto pode divergir; o membro consegue sair sozinho
			s.log.Warn("guild_remove_failed", "discord_id", acct.DiscordID, "error", err)
		} else {
			s.log.Info("guild_member_removed", "discord_id", acct.DiscordID)
		}
	}

	if err := s.notifier.SendDM(ctx, acct.DiscordID, farewellMessage(s.brand.URL)); err != nil {
		s.log.Warn("farewell_dm_failed", "discord_id", acct.DiscordID, "error", err)
	}

	if err := s.store.Delete(ctx, acct.ID); err != nil {
		s.log.Error("unlink_delete_failed", "user_id", sess.UserID, "error", err)
		return &PersistenceError{Op: "delete linked account", Err: err}
	}

	s.log.Info("account_unlinked", "user_id", sess.UserID, "discord_id", acct.DiscordID)
	return nil
}

// FreshProfile serves the account's profile fields, refreshing them from the
// API when older than five minutes. A failed refresh serves the stale copy.
func (s *Service) FreshProfile(ctx context.Context, acct *accounts.LinkedAccount) (Profile, error) {
	if acct == nil {
		return Profile{}, ErrNotFound
	}

	if s.now().Sub(acct.UpdatedAt) > profileStaleAfter {
		user, err := s.fetchUserCached(ctx, acct.DiscordID)
		if err != nil {
			s.log.Warn("profile_refresh_failed", "discord_id", acct.DiscordID, "error", err)
		} else {
			oldAvatar := acct.Avatar
			acct.Username = user.Username
			acct.Discriminator = user.Discriminator
			acct.Avatar = user.Avatar

			if err := s.store.UpdateProfile(ctx, acct.ID, user.Username, user.Discriminator, user.Avatar); err != nil {
				s.log.Warn("profile_update_failed", "discord_id", acct.DiscordID, "error", err)
			}

			if s.mirror != nil && user.Avatar != "" && user.Avatar != oldAvatar {
				if url, err := s.mirror.MirrorAvatar(ctx, acct.DiscordID, user.Avatar); err != nil {
					s.log.Warn("avatar_mirror_failed", "discord_id", acct.DiscordID, "error", err)
				} else {
					s.log.Debug("avatar_mirrored", "discord_id", acct.DiscordID, "url", url)
				}
			}
		}
	}

	return Profile{
		DiscordID:     acct.DiscordID,
		Username:      acct.Username,
		Discriminator: acct.Discriminator,
		AvatarURL:     AvatarURL(acct.DiscordID, acct.Avatar),
	}, nil
}

// MemberCount returns the guild's approximate member/online counts, cached
// for an hour.
func (s *Service) MemberCount(ctx context.Context) (MemberCounts, error) {
	cacheKey := fmt.Sprintf("guild_preview:%s", s.guildID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var counts MemberCounts
			if err := json.Unmarshal([]byte(cached), &counts); err == nil {
				return counts, nil
			}
		}
	}

	preview, err := s.api.FetchGuildPreview(ctx, s.guildID)
	if err != nil {
		return MemberCounts{}, &UpstreamError{Op: "fetch guild preview", Err: err}
	}

	counts := MemberCounts{
		MemberCount: preview.ApproximateMemberCount,
		OnlineCount: preview.ApproximatePresenceCount,
	}

	if s.cache != nil {
		if data, err := json.Marshal(counts); err == nil {
			_ = s.cache.Set(ctx, cacheKey, string(data), memberCountCacheTTL)
		}
	}

	return counts, nil
}

// fetchUserCached wraps FetchUserByID with a short redis cache so repeated
// profile reads across instances don't all hit the API.
func (s *Service) fetchUserCached(ctx context.Context, discordID string) (*discord.User, error) {
	cacheKey := fmt.Sprintf("discord_user:%s", discordID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var user discord.User
			if err := json.Unmarshal([]byte(cached), &user); err == nil {
				return &user, nil
			}
		}
	}

	user, err := s.api.FetchUserByID(ctx, discordID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(user); err == nil {
			_ = s.cache.Set(ctx, cacheKey, string(data), userCacheTTL)
		}
	}

	return user, nil
}

// AvatarURL derives the CDN URL for an avatar hash, falling back to the
// static placeholder when the account has none.
func AvatarURL(discordID, avatarHash string) string {
	if avatarHash == "" {
		return avatarPlaceholder
	}
	return fmt.Sprintf("%s/%s/%s.png", avatarCDNBase, discordID, avatarHash)
}
