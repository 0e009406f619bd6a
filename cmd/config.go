package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentdock/agentdock/internal/managers"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all API server configuration.
type Config struct {
	HTTPAddress string
	DatabaseURL string

	SessionSecret     string
	SessionTTLMinutes int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	GoogleServices     []string

	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftRedirectURI  string
	MicrosoftServices     []string

	SlackClientID     string
	SlackClientSecret string
	SlackRedirectURI  string

	NotionClientID     string
	NotionClientSecret string
	NotionRedirectURI  string
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c *Config) ProviderConfig() managers.ProviderRegistryConfig {
	return managers.ProviderRegistryConfig{
		Google: managers.ProviderCredentials{
			ClientID:     c.GoogleClientID,
			ClientSecret: c.GoogleClientSecret,
			RedirectURI:  c.GoogleRedirectURI,
		},
		GoogleServices: c.GoogleServices,
		Microsoft: managers.ProviderCredentials{
			ClientID:     c.MicrosoftClientID,
			ClientSecret: c.MicrosoftClientSecret,
			RedirectURI:  c.MicrosoftRedirectURI,
		},
		MicrosoftServices: c.MicrosoftServices,
		Slack: managers.ProviderCredentials{
			ClientID:     c.SlackClientID,
			ClientSecret: c.SlackClientSecret,
			RedirectURI:  c.SlackRedirectURI,
		},
		Notion: managers.ProviderCredentials{
			ClientID:     c.NotionClientID,
			ClientSecret: c.NotionClientSecret,
			RedirectURI:  c.NotionRedirectURI,
		},
	}
}

// LoadConfig loads configuration from files and environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"HTTPAddress":           "HTTP_ADDRESS",
		"DatabaseURL":           "DATABASE_URL",
		"SessionSecret":         "SESSION_SECRET",
		"SessionTTLMinutes":     "SESSION_TTL_MINUTES",
		"GoogleClientID":        "GOOGLE_CLIENT_ID",
		"GoogleClientSecret":    "GOOGLE_CLIENT_SECRET",
		"GoogleRedirectURI":     "GOOGLE_REDIRECT_URI",
		"MicrosoftClientID":     "MICROSOFT_CLIENT_ID",
		"MicrosoftClientSecret": "MICROSOFT_CLIENT_SECRET",
		"MicrosoftRedirectURI":  "MICROSOFT_REDIRECT_URI",
		"SlackClientID":         "SLACK_CLIENT_ID",
		"SlackClientSecret":     "SLACK_CLIENT_SECRET",
		"SlackRedirectURI":      "SLACK_REDIRECT_URI",
		"NotionClientID":        "NOTION_CLIENT_ID",
		"NotionClientSecret":    "NOTION_CLIENT_SECRET",
		"NotionRedirectURI":     "NOTION_REDIRECT_URI",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	v.SetConfigName("agentdock_config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.agentdock")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTPAddress", ":8080")
	v.SetDefault("SessionTTLMinutes", 60*24)
	v.SetDefault("GoogleServices", []string{"gmail", "sheets", "calendar", "drive"})
	v.SetDefault("MicrosoftServices", []string{"mail", "calendar", "files"})
}

func validateConfig(config *Config) error {
	var missing []string

	if config.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if config.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}
