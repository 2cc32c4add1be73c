package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// NewClient builds a DynamoDB client from the default AWS credential chain,
// applying the Region, Profile and Endpoint overrides in cfg.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, serverError("load aws config", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

var shared = sync.OnceValues(func() (*Store, error) {
	cfg := LoadConfig()
	client, err := NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("init shared store: %w", err)
	}
	s := New(client, cfg)
	s.logger.Info("shared store initialized",
		"table", cfg.Table,
		"shards", cfg.NumShards,
		"keyStrategy", string(cfg.KeyStrategy),
	)
	return s, nil
})

// Shared returns the process-wide Store, building it from LoadConfig on first
// use. Concurrent first calls share a single initialization; a failed
// initialization is not retried.
func Shared() (*Store, error) {
	return shared()
}
