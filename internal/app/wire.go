package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderpool/internal/admission"
	"github.com/alanyoungcy/orderpool/internal/analytics"
	s3blob "github.com/alanyoungcy/orderpool/internal/blob/s3"
	"github.com/alanyoungcy/orderpool/internal/cache/redis"
	"github.com/alanyoungcy/orderpool/internal/chain"
	"github.com/alanyoungcy/orderpool/internal/config"
	"github.com/alanyoungcy/orderpool/internal/cosign"
	"github.com/alanyoungcy/orderpool/internal/domain"
	"github.com/alanyoungcy/orderpool/internal/lifecycle"
	"github.com/alanyoungcy/orderpool/internal/server"
	"github.com/alanyoungcy/orderpool/internal/server/handler"
	"github.com/alanyoungcy/orderpool/internal/service"
	"github.com/alanyoungcy/orderpool/internal/store/postgres"
	"github.com/alanyoungcy/orderpool/internal/validate"
)

// Dependencies bundles everything the running application needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Server    *server.Server
	Analytics *analytics.Logger
	Archiver  *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	// Postgres is the system of record and is always required.
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fail(fmt.Errorf("app: connect postgres: %w", err))
	}
	closers = append(closers, pg.Close)

	if cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			return fail(fmt.Errorf("app: run migrations: %w", err))
		}
	}
	orderStore := postgres.NewOrderStore(pg.Pool())

	rd, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return fail(fmt.Errorf("app: connect redis: %w", err))
	}
	closers = append(closers, func() { _ = rd.Close() })

	var quotes domain.QuoteMetadataRepository = redis.NewQuoteStore(rd, cfg.Redis.QuoteTTL.Duration)
	var limiter domain.RateLimiter = redis.NewRateLimiter(rd)

	// Chain clients, one per configured chain.
	chainIDs, err := cfg.ChainIDs()
	if err != nil {
		return fail(fmt.Errorf("app: parse chain ids: %w", err))
	}
	rpcURLs := make(map[uint64]string, len(chainIDs))
	for _, id := range chainIDs {
		cc, _ := cfg.ChainByID(id)
		rpcURLs[id] = cc.RPCURL
	}
	providers, err := chain.Dial(ctx, rpcURLs, cfg.Validation.OnChainTimeout.Duration)
	if err != nil {
		return fail(fmt.Errorf("app: dial chains: %w", err))
	}
	closers = append(closers, providers.Close)

	// Relay orders simulate through their own quoter contract; chains
	// without a relay quoter reject relay submissions as unconfigured.
	onchain := validate.NewValidatorMap()
	relayOnchain := validate.NewValidatorMap()
	for _, id := range chainIDs {
		cc, _ := cfg.ChainByID(id)
		client, err := providers.Get(id)
		if err != nil {
			return fail(err)
		}
		onchain.Set(id, validate.NewQuoterValidator(
			client,
			common.HexToAddress(cc.Quoter),
			cfg.Validation.OnChainTimeout.Duration,
		))
		if cc.RelayQuoter != "" {
			relayOnchain.Set(id, validate.NewQuoterValidator(
				client,
				common.HexToAddress(cc.RelayQuoter),
				cfg.Validation.OnChainTimeout.Duration,
			))
		}
	}

	offchain := validate.NewOffChainValidator(nil, validate.OffChainConfig{
		MaxDeadline:        cfg.Validation.MaxDeadline.Duration,
		SkipDecayStartTime: cfg.Validation.SkipDecayStartTime,
	})
	relayOffchain := validate.NewOffChainValidator(nil, validate.OffChainConfig{
		MaxDeadline:        cfg.Validation.MaxDeadline.Duration,
		SkipDecayStartTime: cfg.Validation.SkipDecayStartTime,
		SkipTokenOverlap:   true,
	})

	key, err := cosign.LoadKey(cosign.KeyConfig{
		RawPrivateKey:    cfg.Cosigner.PrivateKey,
		EncryptedKeyPath: cfg.Cosigner.EncryptedKeyPath,
		KeyPassword:      cfg.Cosigner.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("app: load cosigner key: %w", err))
	}
	params := make(map[uint64]cosign.ChainParams, len(chainIDs))
	for _, id := range chainIDs {
		cc, _ := cfg.ChainByID(id)
		params[id] = cosign.ChainParams{
			TargetBlockBuffer: cc.TargetBlockBuffer,
			DecayStartBuffer:  cc.DecayStartBuffer,
		}
	}
	cosigner := cosign.New(key, providers, params, nil)
	logger.Info("cosigner ready", slog.String("address", cosigner.Address().Hex()))

	// Optional blob-backed analytics and archival.
	var (
		events   *analytics.Logger
		archiver *s3blob.Archiver
	)
	if cfg.S3.Enabled {
		bc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("app: connect s3: %w", err))
		}
		writer := s3blob.NewWriter(bc)
		reader := s3blob.NewReader(bc)
		events = analytics.NewLogger(writer, analytics.Config{
			BatchSize:     cfg.S3.EventBatchSize,
			FlushInterval: cfg.S3.FlushInterval.Duration,
		}, logger)
		if cfg.S3.ArchiveEnabled {
			archiver = s3blob.NewArchiver(writer, reader, orderStore)
		}
	}

	// Optional lifecycle kickoff via Step Functions.
	var kickoff lifecycle.Kickoff
	if cfg.Lifecycle.Enabled {
		arns := make(map[uint64]string, len(cfg.Lifecycle.StateMachineARNs))
		for chainKey, arn := range cfg.Lifecycle.StateMachineARNs {
			id, err := strconv.ParseUint(chainKey, 10, 64)
			if err != nil {
				return fail(fmt.Errorf("app: lifecycle chain id %q: %w", chainKey, err))
			}
			arns[id] = arn
		}
		starter, err := lifecycle.NewStarter(ctx, lifecycle.ClientConfig{
			Region:           cfg.Lifecycle.Region,
			AccessKey:        cfg.Lifecycle.AccessKey,
			SecretKey:        cfg.Lifecycle.SecretKey,
			Endpoint:         cfg.Lifecycle.Endpoint,
			StateMachineARNs: arns,
		}, logger)
		if err != nil {
			return fail(fmt.Errorf("app: lifecycle client: %w", err))
		}
		kickoff = starter
	}

	// The typed nil must not leak into the interface fields.
	var orderEvents service.EventSink
	var statusEvents service.StatusSink
	if events != nil {
		orderEvents = events
		statusEvents = events
	}

	standardAdmission := admission.NewController(orderStore, admission.TieredCeiling(
		cfg.Admission.DefaultLimit,
		cfg.Admission.ElevatedAddrs,
		cfg.Admission.ElevatedLimit,
	))
	relayAdmission := admission.NewController(orderStore, admission.FixedCeiling(cfg.Admission.RelayLimit))

	standardSvc := service.NewOrderService(
		offchain, onchain, standardAdmission, cosigner,
		orderStore, quotes, kickoff, orderEvents, logger,
	)
	relaySvc := service.NewOrderService(
		relayOffchain, relayOnchain, relayAdmission, nil,
		orderStore, quotes, kickoff, orderEvents, logger,
	)

	dispatcher := service.NewDispatcher(map[domain.OrderType]*service.OrderService{
		domain.OrderTypeDutch:    standardSvc,
		domain.OrderTypeLimit:    standardSvc,
		domain.OrderTypeDutchV2:  standardSvc,
		domain.OrderTypeDutchV3:  standardSvc,
		domain.OrderTypePriority: standardSvc,
		domain.OrderTypeRelay:    relaySvc,
	})
	statusSvc := service.NewStatusService(orderStore, statusEvents, logger)

	srv := server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		CORSOrigins:     cfg.Server.CORSOrigins,
		APIKey:          cfg.Server.APIKey,
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: cfg.Server.RateLimitWindow.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(logger),
		Orders: handler.NewOrderHandler(dispatcher, orderStore, chainIDs, logger),
		Status: handler.NewStatusHandler(statusSvc, logger),
	}, limiter, logger)

	return &Dependencies{
		Server:    srv,
		Analytics: events,
		Archiver:  archiver,
	}, cleanup, nil
}
