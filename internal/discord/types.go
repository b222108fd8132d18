package discord

import "fmt"

// User é o perfil retornado por /users/@me e /users/{id}.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
	Avatar        string `json:"avatar"`
	Bot           bool   `json:"bot"`
}

// Member representa a participação de um usuário na guilda.
type Member struct {
	User     User     `json:"user"`
	Nick     *string  `json:"nick"`
	Roles    []string `json:"roles"`
	JoinedAt string   `json:"joined_at"`
}

// Channel is the DM channel handle returned by /users/@me/channels.
type Channel struct {
	ID   string `json:"id"`
	Type int    `json:"type"`
}

// GuildPreview carries the approximate counts shown on the site.
type GuildPreview struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	ApproximateMemberCount   int    `json:"approximate_member_count"`
	ApproximatePresenceCount int    `json:"approximate_presence_count"`
}

// Embed is the message payload sent in DM notifications.
type Embed struct {
	Title       string          `json:"title,omitempty"`
	URL         string          `json:"url,omitempty"`
	Description string          `json:"description,omitempty"`
	Color       int             `json:"color,omitempty"`
	Thumbnail   *EmbedThumbnail `json:"thumbnail,omitempty"`
}

type EmbedThumbnail struct {
	URL string `json:"url"`
}

// APIError is returned for any non-2xx response or undecodable body.
type APIError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("discord api error: status=%d endpoint=%s body=%s", e.Status, e.Endpoint, e.Body)
	}
	return fmt.Sprintf("discord api error: status=%d endpoint=%s", e.Status, e.Endpoint)
}
