package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHost                = "www.evernote.com"
	DefaultConsumerSecretParam = "/gophnote/consumer-secret"
	DefaultDeveloperTokenParam = "/gophnote/developer-token"
	DefaultKeychainTable       = "GophnoteCredentials"
	DefaultLeaseTable          = "GophnoteCredentialLeases"
	DefaultKMSKeyID            = "alias/gophnote-credential-key"
	DefaultRedirectURL         = "http://localhost:8080/oauth/callback"
	DefaultSourceApplication   = "gophnote"
)

// Config holds everything needed to build an App.
type Config struct {
	Host                string `yaml:"host"`
	ConsumerKey         string `yaml:"consumer_key"`
	ConsumerSecretParam string `yaml:"consumer_secret_param"`
	DeveloperTokenParam string `yaml:"developer_token_param"`
	// NoteStoreURL selects developer token authentication when set.
	NoteStoreURL      string `yaml:"note_store_url"`
	RedirectURL       string `yaml:"redirect_url"`
	KeychainTable     string `yaml:"keychain_table"`
	LeaseTable        string `yaml:"lease_table"`
	KMSKeyID          string `yaml:"kms_key_id"`
	SourceApplication string `yaml:"source_application"`
	DevMode           bool   `yaml:"dev_mode"`
}

// ConfigFromEnv reads the environment, falling back to defaults.
func ConfigFromEnv() Config {
	return Config{
		Host:                envOr("GOPHNOTE_HOST", DefaultHost),
		ConsumerKey:         os.Getenv("GOPHNOTE_CONSUMER_KEY"),
		ConsumerSecretParam: envOr("CONSUMER_SECRET_PARAM", DefaultConsumerSecretParam),
		DeveloperTokenParam: envOr("DEVELOPER_TOKEN_PARAM", DefaultDeveloperTokenParam),
		NoteStoreURL:        os.Getenv("GOPHNOTE_NOTE_STORE_URL"),
		RedirectURL:         envOr("GOPHNOTE_REDIRECT_URL", DefaultRedirectURL),
		KeychainTable:       envOr("KEYCHAIN_TABLE", DefaultKeychainTable),
		LeaseTable:          envOr("KEYCHAIN_LEASE_TABLE", DefaultLeaseTable),
		KMSKeyID:            envOr("KMS_KEY_ID", DefaultKMSKeyID),
		SourceApplication:   envOr("GOPHNOTE_SOURCE_APPLICATION", DefaultSourceApplication),
		DevMode:             os.Getenv("DEV_MODE") == "true",
	}
}

// LoadFile overlays the YAML file at path on base. Keys missing from the
// file keep base's values.
func LoadFile(path string, base Config) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return base, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
