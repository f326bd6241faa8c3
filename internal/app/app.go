// Package app wires configuration into a ready-to-serve handler. Both
// binaries under cmd/ build their handler here.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"contact-intake/handler"
	"contact-intake/internal/config"
	"contact-intake/internal/cors"
	"contact-intake/internal/integrations/paramstore"
	"contact-intake/internal/integrations/turnstile"
	"contact-intake/internal/repository"
	"contact-intake/internal/usecase"
)

// Build constructs the handler and returns a cleanup func releasing any
// connections it opened.
func Build(ctx context.Context, cfg *config.Config) (*handler.Handler, func(), error) {
	cleanup := func() {}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	opts := []turnstile.Option{}
	if cfg.UsesSecretParameter() {
		ac, err := loadAWS()
		if err != nil {
			return nil, cleanup, err
		}
		ps, err := paramstore.New(awsssm.NewFromConfig(ac))
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: create SSM client: %w", err)
		}
		opts = append(opts, turnstile.WithSecretParameter(ps, cfg.SecretParam))
	} else {
		opts = append(opts, turnstile.WithSecret(cfg.SecretKey))
	}
	verifier, err := turnstile.NewClient(cfg.SiteverifyURL, opts...)
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: create verification client: %w", err)
	}

	var store usecase.MessageSaver
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: connect postgres: %w", err)
		}
		cleanup = pool.Close
		pg, err := repository.NewPg(pool)
		if err != nil {
			return nil, cleanup, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, cleanup, err
		}
		store = pg
	default:
		ac, err := loadAWS()
		if err != nil {
			return nil, cleanup, err
		}
		dynamo, err := repository.New(awsdynamodb.NewFromConfig(ac), cfg.ContactTable)
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: create dynamodb store: %w", err)
		}
		store = dynamo
	}

	svc, err := usecase.NewContactService(verifier, store)
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: create contact service: %w", err)
	}
	h, err := handler.NewHandler(svc, cors.NewPolicy(cfg.AllowedOrigins),
		handler.WithTrustedCFConnectingIP(cfg.TrustCFConnectingIP))
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: create handler: %w", err)
	}
	return h, cleanup, nil
}
