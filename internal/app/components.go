package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"skillbadge/internal/badge/guard"
	"skillbadge/internal/badge/ledger"
	"skillbadge/internal/badge/ports"
	"skillbadge/internal/badge/store/attempt"
	"skillbadge/internal/badge/store/profile"
	"skillbadge/internal/badge/verifier"
	"skillbadge/internal/platform/config"
	"skillbadge/internal/platform/database"
	"skillbadge/internal/platform/kafka"
	"skillbadge/internal/platform/kafka/producer"
	platformmongo "skillbadge/internal/platform/mongo"
	platformredis "skillbadge/internal/platform/redis"
	"skillbadge/internal/ratelimit"
	id "skillbadge/pkg/domain"
	audit "skillbadge/pkg/platform/audit"
	"skillbadge/pkg/platform/audit/publisher"
	kafkasink "skillbadge/pkg/platform/audit/store/kafka"
	auditmemory "skillbadge/pkg/platform/audit/store/memory"
	"skillbadge/pkg/platform/circuit"
)

const (
	poolStatsInterval = 15 * time.Second
	auditBuffer       = 1024
	auditPartitions   = 3
)

func (a *App) buildStores(ctx context.Context) error {
	cfg := a.Config
	var pool *database.Pool
	if cfg.Store.Profiles == config.BackendPostgres || cfg.Store.Attempts == config.BackendPostgres {
		var err error
		pool, err = database.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.onClose("postgres", func(context.Context) error { return pool.Close() })
		a.Health.RegisterCheck("postgres", pool.Health)
	}

	switch cfg.Store.Profiles {
	case config.BackendPostgres:
		a.Profiles = profile.NewPostgres(pool.DB())
	case config.BackendMongo:
		client, err := platformmongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		a.onClose("mongo", client.Close)
		a.Health.RegisterCheck("mongo", client.Health)

		store := profile.NewMongo(client.Database())
		if err := store.EnsureIndexes(ctx); err != nil {
			return err
		}
		a.Profiles = store
	default:
		store := profile.NewInMemory()
		for user, wallet := range cfg.Store.SeedWallets {
			store.SetWallet(id.UserID(user), wallet)
		}
		a.Profiles = store
	}

	switch cfg.Store.Attempts {
	case config.BackendPostgres:
		a.Attempts = attempt.NewPostgres(pool.DB())
	default:
		a.Attempts = attempt.NewInMemory()
	}
	return nil
}

// buildCoordination picks the issuance guard and the upload limiter. Both
// move to Redis when it is configured so replicas share them.
func (a *App) buildCoordination(ctx context.Context) (ports.Guard, ratelimit.Limiter, error) {
	cfg := a.Config.Redis
	if cfg.URL == "" {
		limiter := ratelimit.NewInMemory()
		a.background = append(a.background, func(ctx context.Context) {
			pruneLimiter(ctx, limiter, a.Config.RateLimit.Window)
		})
		return guard.NewMemory(), limiter, nil
	}
	client, err := platformredis.New(ctx, cfg, a.Registry)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	a.onClose("redis", func(context.Context) error { return client.Close() })
	a.Health.RegisterCheck("redis", client.Health)
	a.background = append(a.background, func(ctx context.Context) {
		client.RunPoolStats(ctx, poolStatsInterval)
	})
	g := guard.NewRedis(client.Client,
		guard.WithTTL(cfg.GuardTTL),
		guard.WithLogger(a.Logger),
	)
	return g, ratelimit.NewRedis(client.Client), nil
}

func pruneLimiter(ctx context.Context, limiter *ratelimit.InMemory, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}

func (a *App) buildAudit(ctx context.Context) error {
	var sink audit.Sink
	if a.Config.Kafka.Brokers == "" {
		sink = auditmemory.NewInMemoryStore()
	} else {
		p, err := producer.New(a.Config.Kafka, a.Logger)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		a.onClose("kafka", func(context.Context) error { return p.Close() })

		topics := kafka.NewTopicChecker(p.Client(), a.Config.Kafka.AuditTopic)
		if err := topics.EnsureTopic(ctx, auditPartitions, 1); err != nil {
			a.Logger.WarnContext(ctx, "could not ensure audit topic",
				"topic", a.Config.Kafka.AuditTopic,
				"error", err,
			)
		}
		a.Health.RegisterOptionalCheck(topics.Name(), topics.Check)
		sink = kafkasink.New(p, a.Config.Kafka.AuditTopic)
	}

	a.publisher = publisher.NewPublisher([]audit.Sink{sink},
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithPublisherLogger(a.Logger),
		publisher.WithMetrics(publisher.NewMetrics(a.Registry)),
	)
	return nil
}

func (a *App) buildLedger(ctx context.Context) (ports.SignerProvider, ports.Confirmer, error) {
	cfg := a.Config.Ledger
	contract, err := ledger.NewContract(cfg.ContractAddress)
	if err != nil {
		return nil, nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial ledger: %w", err)
	}
	a.onClose("ledger", func(context.Context) error {
		client.Close()
		return nil
	})
	a.Health.RegisterCheck("ledger", func(ctx context.Context) error {
		_, err := client.BlockNumber(ctx)
		return err
	})

	watcher := ledger.NewWatcher(client, contract,
		ledger.WithConfirmTimeout(cfg.ConfirmTimeout),
		ledger.WithPollInterval(cfg.PollInterval),
	)
	signers := ledger.NewRPCSignerProvider(cfg.RPCURL, contract, a.Profiles,
		ledger.WithGasLimit(cfg.GasLimit),
		ledger.WithSignerLogger(a.Logger),
	)
	return signers, watcher, nil
}

func (a *App) buildVerifier() ports.Verifier {
	cfg := a.Config.Verifier
	client := verifier.New(verifier.Config{
		BaseURL: cfg.URL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	breaker := circuit.New("verifier",
		circuit.WithFailureThreshold(cfg.FailureThreshold),
		circuit.WithCooldown(cfg.Cooldown),
	)
	return verifier.NewGuarded(client, breaker, verifier.WithLogger(a.Logger))
}
