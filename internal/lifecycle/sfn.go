// Package lifecycle starts the per-order state machine that tracks an order
// from open to a terminal status.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sfn/types"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Kickoff starts lifecycle tracking for a newly admitted order. Failures are
// non-fatal to order submission; callers log and move on.
type Kickoff interface {
	Start(ctx context.Context, order *domain.Order) error
}

// ClientConfig holds the configuration for the Step Functions client.
type ClientConfig struct {
	// Region is the AWS region hosting the state machines.
	Region string

	// AccessKey and SecretKey authenticate the client. Leave both empty to
	// use the ambient credential chain.
	AccessKey string
	SecretKey string

	// Endpoint overrides the service endpoint, for localstack-style testing.
	Endpoint string

	// StateMachineARNs maps chain id to the status-tracking state machine.
	StateMachineARNs map[uint64]string
}

// Starter kicks off one state machine execution per order hash using AWS
// Step Functions. The execution name is the order hash, so retried
// submissions of the same order never spawn a second tracker.
type Starter struct {
	client *sfn.Client
	arns   map[uint64]string
	logger *slog.Logger
}

// executionInput is the initial state handed to the tracking state machine.
type executionInput struct {
	OrderHash   string `json:"orderHash"`
	ChainID     uint64 `json:"chainId"`
	OrderStatus string `json:"orderStatus"`
	OrderType   string `json:"orderType"`
	QuoteID     string `json:"quoteId,omitempty"`
}

// NewStarter creates a Starter from the given configuration.
func NewStarter(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Starter, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("lifecycle: region is required")
	}
	if len(cfg.StateMachineARNs) == 0 {
		return nil, fmt.Errorf("lifecycle: at least one state machine arn is required")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: load aws config: %w", err)
	}

	var sfnOpts []func(*sfn.Options)
	if cfg.Endpoint != "" {
		sfnOpts = append(sfnOpts, func(o *sfn.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &Starter{
		client: sfn.NewFromConfig(awsCfg, sfnOpts...),
		arns:   cfg.StateMachineARNs,
		logger: logger,
	}, nil
}

// Start begins a tracking execution for the order. An execution already
// running under the same name means a retried submission; that is treated
// as success.
func (s *Starter) Start(ctx context.Context, order *domain.Order) error {
	arn, ok := s.arns[order.ChainID]
	if !ok {
		return fmt.Errorf("lifecycle: no state machine for chain %d", order.ChainID)
	}

	input, err := json.Marshal(executionInput{
		OrderHash:   order.Hash,
		ChainID:     order.ChainID,
		OrderStatus: string(order.Status),
		OrderType:   string(order.Type),
		QuoteID:     order.QuoteID,
	})
	if err != nil {
		return fmt.Errorf("lifecycle: marshal execution input: %w", err)
	}

	_, err = s.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(arn),
		Name:            aws.String(executionName(order.Hash)),
		Input:           aws.String(string(input)),
	})
	if err != nil {
		var exists *types.ExecutionAlreadyExists
		if errors.As(err, &exists) {
			s.logger.Debug("lifecycle execution already running",
				slog.String("order_hash", order.Hash))
			return nil
		}
		return fmt.Errorf("lifecycle: start execution for %s: %w", order.Hash, err)
	}

	s.logger.Info("lifecycle tracking started",
		slog.String("order_hash", order.Hash),
		slog.Uint64("chain_id", order.ChainID))
	return nil
}

// executionName derives a valid state machine execution name from the order
// hash. Execution names forbid some characters and cap at 80, so the 0x
// prefix is dropped.
func executionName(orderHash string) string {
	name := orderHash
	if len(name) > 2 && name[0] == '0' && (name[1] == 'x' || name[1] == 'X') {
		name = name[2:]
	}
	if len(name) > 80 {
		name = name[:80]
	}
	return name
}

// Compile-time interface check.
var _ Kickoff = (*Starter)(nil)
