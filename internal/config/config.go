// Package config defines the gateway's static configuration. It is
// loaded once at startup and immutable thereafter; the only runtime
// reloads in the system are the per-plugin rule documents, which live
// outside this package.
package config

import (
	"time"

	"github.com/Network-Direction/chatbot/internal/types"
)

// SecretString is an alias for types.SecretString, used for every value
// that must never appear in logs.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"prod" validate:"oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server       ServerConfig
	Database     DatabaseConfig
	Graph        GraphConfig
	Subscription SubscriptionConfig
	Plugins      PluginConfig
}

// ServerConfig holds the inbound HTTP listener settings. TLS is
// terminated upstream; the listener speaks plain HTTP.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds the audit store connection settings.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`
}

// GraphConfig holds the app registration and chat targets for the
// Graph API.
type GraphConfig struct {
	TenantID     string       `envconfig:"GRAPH_TENANT_ID" validate:"required"`
	ClientID     string       `envconfig:"GRAPH_CLIENT_ID" validate:"required"`
	ClientSecret SecretString `envconfig:"GRAPH_CLIENT_SECRET" validate:"required"`
	RedirectURI  string       `envconfig:"GRAPH_REDIRECT_URI" validate:"required,url"`
	Scopes       []string     `envconfig:"GRAPH_SCOPES" default:"Chat.ReadWrite,offline_access"`

	// ChatID receives event messages; AlertChatID receives operational
	// notices about the gateway itself.
	ChatID      string `envconfig:"GRAPH_CHAT_ID" validate:"required"`
	AlertChatID string `envconfig:"GRAPH_ALERT_CHAT_ID" validate:"required"`
	BotName     string `envconfig:"GRAPH_BOT_NAME" default:"chatbot"`

	TokenFile string `envconfig:"GRAPH_TOKEN_FILE" default:"token.json"`
	UserAgent string `envconfig:"GRAPH_USER_AGENT" default:"network-chatbot/1.0"`

	// Endpoint overrides, for tests only.
	LoginBaseURL string `envconfig:"GRAPH_LOGIN_BASE_URL"`
	APIBaseURL   string `envconfig:"GRAPH_API_BASE_URL"`
}

// SubscriptionConfig holds the change notification subscription for the
// bot's chat, including the certificate Graph encrypts resource data
// with and the private key that opens it.
type SubscriptionConfig struct {
	NotificationURL         string `envconfig:"SUB_NOTIFICATION_URL" validate:"required,url"`
	ClientState             string `envconfig:"SUB_CLIENT_STATE"`
	EncryptionCertificate   string `envconfig:"SUB_ENCRYPTION_CERT" validate:"required"`
	EncryptionCertificateID string `envconfig:"SUB_ENCRYPTION_CERT_ID" validate:"required"`
	PrivateKeyFile          string `envconfig:"SUB_PRIVATE_KEY_FILE" validate:"required"`
}

// PluginConfig points at the per-plugin rule documents. An empty path
// disables that plugin's route.
type PluginConfig struct {
	MistRules  string `envconfig:"MIST_RULES" default:"config/mist.yaml"`
	JunosRules string `envconfig:"JUNOS_RULES"`
}
