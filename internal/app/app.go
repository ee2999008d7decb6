// Package app wires configuration, secrets and credential storage into a
// ready to use session and note service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/jun/gophnote/internal/auth"
	"github.com/jun/gophnote/internal/crypto"
	"github.com/jun/gophnote/internal/keychain"
	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/notes"
	"github.com/jun/gophnote/internal/secret"
	"github.com/jun/gophnote/internal/session"
	"github.com/jun/gophnote/internal/transport"
)

// App holds the wired session and note service.
type App struct {
	Config  Config
	Session *session.Session
	Notes   *notes.Service
}

// Deps are the collaborators Build needs. NewApp fills them from AWS.
type Deps struct {
	Resolver  secret.Resolver
	Keychain  keychain.Store
	Locker    keychain.Locker
	Prompt    auth.CodePrompt
	Transport transport.Transport
	Logger    logging.Logger
}

// NewApp initializes the application dependencies. Secrets come from SSM and
// credentials are stored in DynamoDB sealed with KMS; DEV_MODE swaps in
// environment secrets and a mock encryptor.
func NewApp(ctx context.Context, cfg Config, prompt auth.CodePrompt) (*App, error) {
	log := logging.Named("app")
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	var resolver secret.Resolver
	var enc crypto.Encryptor
	if cfg.DevMode {
		resolver = secret.NewEnvResolver()
		enc = crypto.NewMockEncryptor()
		log.Infof("using EnvResolver and MockEncryptor (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
		enc = crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.KMSKeyID)
	}

	db := dynamodb.NewFromConfig(awsCfg)
	return Build(ctx, cfg, Deps{
		Resolver: resolver,
		Keychain: keychain.NewEncrypted(keychain.NewDynamo(db, cfg.KeychainTable), enc),
		Locker:   keychain.NewDynamoLocker(db, cfg.LeaseTable),
		Prompt:   prompt,
		Logger:   logging.Default(),
	})
}

// Build assembles an App from cfg and deps and restores any stored
// credential.
func Build(ctx context.Context, cfg Config, deps Deps) (*App, error) {
	log := logging.OrDefault(deps.Logger)
	authenticator, err := NewAuthenticator(ctx, cfg, deps.Resolver, deps.Prompt)
	if err != nil {
		return nil, err
	}

	s := session.New(session.Options{
		Host:          cfg.Host,
		Authenticator: authenticator,
		Keychain:      deps.Keychain,
		Locker:        deps.Locker,
		Transport:     deps.Transport,
		Logger:        log,
	})
	if err := s.Restore(ctx); err != nil {
		log.Errorf("failed to restore session for %s: %v", cfg.Host, err)
	}

	return &App{
		Config:  cfg,
		Session: s,
		Notes:   notes.New(s, notes.Options{SourceApplication: cfg.SourceApplication, Logger: log}),
	}, nil
}

// NewAuthenticator picks developer token authentication when a note store
// URL is configured and OAuth otherwise.
func NewAuthenticator(ctx context.Context, cfg Config, resolver secret.Resolver, prompt auth.CodePrompt) (auth.Authenticator, error) {
	if cfg.NoteStoreURL != "" {
		token, err := resolver.GetSecret(ctx, cfg.DeveloperTokenParam)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve developer token: %w", err)
		}
		return auth.NewDeveloperTokenAuthenticator(token, cfg.NoteStoreURL), nil
	}

	if cfg.ConsumerKey == "" {
		return nil, errors.New("app: consumer key or note store url is required")
	}
	consumerSecret, err := resolver.GetSecret(ctx, cfg.ConsumerSecretParam)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve consumer secret: %w", err)
	}
	oauthConfig := auth.NewOAuthConfig(cfg.Host, cfg.ConsumerKey, consumerSecret, cfg.RedirectURL)
	return auth.NewOAuthAuthenticator(oauthConfig, prompt), nil
}
