package linker

import (
	"context"
	"fmt"
	"log/slog"

	"clubsite/internal/discord"
)

// Brand is the fixed part of every DM embed the site sends.
type Brand struct {
	Title        string
	URL          string
	ThumbnailURL string
	Color        int
}

func DefaultBrand() Brand {
	return Brand{
		Title:        "UWindsor Computer Science Society",
		URL:          "https://css.uwindsor.ca",
		ThumbnailURL: "https://css.uwindsor.ca/css-logo-square.png",
		Color:        3447003,
	}
}

// Notifier delivers embed DMs via the two-step open-channel + send-message
// flow. Every caller treats it as best-effort.
type Notifier struct {
	api   ChatAPI
	brand Brand
	log   *slog.Logger
}

func NewNotifier(log *slog.Logger, api ChatAPI, brand Brand) *Notifier {
	return &Notifier{api: api, brand: brand, log: log}
}

// SendDM opens the recipient's DM channel and posts the branded embed.
func (n *Notifier) SendDM(ctx context.Context, discordID, message string) error {
	ch, err := n.api.OpenDMChannel(ctx, discordID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}

	embed := discord.Embed{
		Title:       n.brand.Title,
		URL:         n.brand.URL,
		Description: message,
		Color:       n.brand.Color,
	}
	if n.brand.ThumbnailURL != "" {
		embed.Thumbnail = &discord.EmbedThumbnail{URL: n.brand.ThumbnailURL}
	}

	if err := n.api.SendEmbed(ctx, ch.ID, embed); err != nil {
		return fmt.Errorf("send embed: %w", err)
	}

	n.log.Debug("dm_sent", "discord_id", discordID)
	return nil
}

func welcomeMessage(nickname, siteURL string) string {
	return fmt.Sprintf("🔗✅ You've successfully linked your account.\n\n"+
		"Welcome to the server! We've set your nickname to **%s**. "+
		"Reach out to a team member if you'd like it shortened.\n\n%s", nickname, siteURL)
}

func farewellMessage(siteURL string) string {
	return fmt.Sprintf("🔗💥 You've successfully unlinked your account.\n\n"+
		"You've been removed from the server. If you'd like to rejoin, "+
		"relink your account at %s/discord.", siteURL)
}
