package config

import (
	"encoding/base64"
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	// Discord integration
	GuildID  string
	BotToken string // bot token para chamadas de serviço; nunca logar

	// raw secrets kept in-memory only; never log these
	SessionSecret     string
	AdminSecretKey    string
	EncryptionKeysRaw string
	EncryptionKey     []byte // decoded from EncryptionKeysRaw, protege access tokens no banco

	// avatar mirror (R2/S3)
	R2Endpoint  string
	R2Bucket    string
	R2PublicURL string

	CORSOrigins []string
}

func Load() (Config, error) {
	// .env é opcional; em produção as vars vêm do ambiente
	_ = godotenv.Load()

	cfg := Config{
		DBDSN:          os.Getenv("DB_DSN"),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:       getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		GuildID:        os.Getenv("DISCORD_GUILD_ID"),
		BotToken:       os.Getenv("DISCORD_BOT_TOKEN"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		AdminSecretKey: getenvDefault("ADMIN_SECRET_KEY", ""),
		R2Endpoint:     getenvDefault("R2_ENDPOINT", ""),
		R2Bucket:       getenvDefault("R2_BUCKET", ""),
		R2PublicURL:    getenvDefault("R2_PUBLIC_URL", ""),
	}

	cfg.EncryptionKeysRaw = os.Getenv("ENCRYPTION_KEY")

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}
	if cfg.GuildID == "" {
		return Config{}, errors.New("missing DISCORD_GUILD_ID")
	}
	if cfg.BotToken == "" {
		return Config{}, errors.New("missing DISCORD_BOT_TOKEN")
	}
	if cfg.SessionSecret == "" {
		return Config{}, errors.New("missing SESSION_SECRET")
	}

	// decode encryption key (base64, must be 32 bytes)
	if cfg.EncryptionKeysRaw != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKeysRaw)
		if err != nil {
			return Config{}, errors.New("ENCRYPTION_KEY must be valid base64")
		}
		if len(key) != 32 {
			return Config{}, errors.New("ENCRYPTION_KEY must be 32 bytes (256 bits)")
		}
		cfg.EncryptionKey = key
	}

	// parse CORS origins
	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
