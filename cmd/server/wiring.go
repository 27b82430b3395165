package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"unionvote/internal/admin"
	"unionvote/internal/anonymizer"
	electionStore "unionvote/internal/election/store"
	"unionvote/internal/eligibility"
	"unionvote/internal/ledger/chain"
	ledgerStore "unionvote/internal/ledger/store"
	memberModels "unionvote/internal/member/models"
	memberStore "unionvote/internal/member/store"
	"unionvote/internal/platform/config"
	"unionvote/internal/platform/kafka"
	"unionvote/internal/platform/metrics"
	"unionvote/internal/platform/postgres"
	redisclient "unionvote/internal/platform/redis"
	"unionvote/internal/token"
	"unionvote/internal/token/revocation"
	httptransport "unionvote/internal/transport/http"
	"unionvote/internal/verification/delivery"
	verificationHandler "unionvote/internal/verification/handler"
	verificationService "unionvote/internal/verification/service"
	"unionvote/internal/verification/store/session"
	"unionvote/internal/verification/store/throttle"
	votingHandler "unionvote/internal/voting/handler"
	votingService "unionvote/internal/voting/service"
	audit "unionvote/pkg/platform/audit"
	"unionvote/pkg/platform/audit/publisher"
	auditMemory "unionvote/pkg/platform/audit/store/memory"
	auditPostgres "unionvote/pkg/platform/audit/store/postgres"
	"unionvote/pkg/platform/audit/worker"
	"unionvote/pkg/platform/middleware/auth"
)

// application owns the router and everything that must be released on
// shutdown, in reverse start order.
type application struct {
	router  http.Handler
	closers []func(ctx context.Context)
}

func (a *application) onClose(fn func(ctx context.Context)) {
	a.closers = append(a.closers, fn)
}

func (a *application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

// devDeliveryOutput receives codes when no real delivery channel is set.
var devDeliveryOutput io.Writer = os.Stderr

type infra struct {
	redis *redisclient.Client
	db    *sql.DB
}

type stores struct {
	registry   verificationService.MemberRegistry
	elections  electionCatalogue
	sessions   sessionStore
	throttle   throttleStore
	revocation revocationStore
	ledger     votingService.Ledger
	audit      audit.Store
}

type electionCatalogue interface {
	eligibility.ElectionStore
	votingService.CandidateStore
}

type sessionStore interface {
	verificationService.SessionStore
	verificationService.Expirer
}

type throttleStore interface {
	verificationService.ThrottleStore
	verificationService.Expirer
}

type revocationStore interface {
	auth.TokenRevocationChecker
	verificationService.TokenRevoker
	verificationService.Expirer
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*application, error) {
	app := &application{}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	in, err := openInfra(ctx, cfg, app)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	st, err := buildStores(cfg, in, log)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	if sealer, ok := st.ledger.(interface{ Seal(context.Context) error }); ok {
		app.onClose(func(ctx context.Context) {
			if err := sealer.Seal(ctx); err != nil {
				log.Error("failed to seal pending ledger block", "error", err)
			}
		})
	}

	auditPublisher := publisher.NewPublisher(st.audit,
		publisher.WithLogger(log),
		publisher.WithFailureRecorder(m),
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithWorkers(cfg.Audit.Workers),
	)
	app.onClose(func(context.Context) { auditPublisher.Close() })

	if err := startOutboxRelay(ctx, cfg, in, log, app); err != nil {
		app.close(ctx)
		return nil, err
	}

	tokens, err := token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("token service: %w", err)
	}

	anon, err := anonymizer.New(cfg.Anonymizer.Secret, cfg.Anonymizer.CycleID)
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("anonymizer: %w", err)
	}

	verification, err := verificationService.New(st.registry, st.sessions, buildDelivery(cfg.Delivery, log), tokens,
		verificationService.WithLogger(log),
		verificationService.WithMetrics(m),
		verificationService.WithAuditPublisher(auditPublisher),
		verificationService.WithThrottle(st.throttle, cfg.Verification.IdentityRateLimit, cfg.Verification.IdentityRateWindow),
		verificationService.WithRevoker(st.revocation),
		verificationService.WithCodeTTL(cfg.Verification.CodeTTL),
		verificationService.WithMaxAttempts(cfg.Verification.MaxAttempts),
	)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	voting, err := votingService.New(
		eligibility.NewService(st.elections, eligibility.WithLogger(log)),
		st.elections,
		st.ledger,
		anon,
		votingService.WithLogger(log),
		votingService.WithMetrics(m),
		votingService.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	sweeper := verificationService.NewSweeper(log, m).
		Add("sessions", st.sessions).
		Add("throttle", st.throttle).
		Add("revocations", st.revocation)
	if err := sweeper.Start(cfg.Verification.SweepSchedule); err != nil {
		app.close(ctx)
		return nil, err
	}
	app.onClose(sweeper.Stop)

	requireAuth := auth.RequireAuth(tokens, st.revocation, log)
	app.router = httptransport.NewRouter(httptransport.RouterConfig{
		Logger:   log,
		Gatherer: reg,
		Checks:   healthChecks(in),
	},
		verificationHandler.New(verification, log, requireAuth),
		votingHandler.New(voting, log, requireAuth),
		admin.New(auditPublisher, log, requireAuth, auth.RequireRole(cfg.Server.AdminRole, log)),
	)
	return app, nil
}

func openInfra(ctx context.Context, cfg config.Config, app *application) (*infra, error) {
	in := &infra{}

	usesRedis := cfg.Backends.Store == config.BackendRedis || cfg.Backends.Ledger == config.BackendRedis
	if usesRedis {
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		in.redis = client
		app.onClose(func(context.Context) { _ = client.Close() })
	}

	usesPostgres := cfg.Backends.Store == config.BackendPostgres || cfg.Backends.Ledger == config.BackendPostgres
	if usesPostgres {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		app.onClose(func(context.Context) { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		in.db = db
	}
	return in, nil
}

func buildStores(cfg config.Config, in *infra, log *slog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.Backends.Store {
	case config.BackendRedis:
		st.sessions = session.NewRedisStore(in.redis.Client)
		st.throttle = throttle.NewRedisStore(in.redis.Client)
		st.revocation = revocation.NewRedisTRL(in.redis.Client)
	case config.BackendPostgres:
		st.sessions = session.NewPostgresStore(in.db)
		st.throttle = throttle.NewPostgresStore(in.db)
		st.revocation = revocation.NewPostgresTRL(in.db, nil)
	case config.BackendMemory:
		st.sessions = session.NewInMemoryStore()
		st.throttle = throttle.NewInMemoryStore()
		st.revocation = revocation.NewInMemoryTRL(nil)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backends.Store)
	}

	if cfg.Backends.Store == config.BackendPostgres {
		st.registry = memberStore.NewPostgresRegistry(in.db)
		st.elections = electionStore.NewPostgresStore(in.db)
	} else {
		log.Warn("using seeded in-memory member registry and election catalogue")
		st.registry = memberStore.NewInMemoryRegistry(seedMembers()...)
		st.elections = seedElections()
	}

	if in.db != nil {
		st.audit = auditPostgres.New(in.db)
	} else {
		st.audit = auditMemory.NewInMemoryStore()
	}

	switch cfg.Backends.Ledger {
	case config.BackendMemory:
		st.ledger = ledgerStore.NewInMemoryLedger()
	case config.BackendRedis:
		st.ledger = ledgerStore.NewRedisLedger(in.redis.Client)
	case config.BackendPostgres:
		st.ledger = ledgerStore.NewPostgresLedger(in.db)
	case config.BackendChain:
		key, err := chain.KeyFromHex(cfg.Chain.SigningKeyHex)
		if err != nil {
			return nil, err
		}
		l, err := chain.New(key, chain.WithBlockSize(cfg.Chain.BlockSize), chain.WithLogger(log))
		if err != nil {
			return nil, err
		}
		st.ledger = l
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backends.Ledger)
	}
	return st, nil
}

// buildDelivery routes codes to the log writer unless a real channel is
// configured for the contact type.
func buildDelivery(cfg config.Delivery, log *slog.Logger) *delivery.Router {
	dev := delivery.NewWriterSender(devDeliveryOutput)
	router := delivery.NewRouter(log).
		Register(memberModels.ChannelEmail, dev).
		Register(memberModels.ChannelSMS, dev)
	if cfg.Channel == config.ChannelLog {
		return router
	}
	if cfg.SendGridAPIKey != "" {
		router.Register(memberModels.ChannelEmail,
			delivery.NewEmailSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName, cfg.SendGridSandbox))
	}
	if cfg.TwilioAccountSID != "" {
		router.Register(memberModels.ChannelSMS,
			delivery.NewSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.SMSFrom))
	}
	return router
}

// startOutboxRelay forwards committed audit rows to Kafka. It needs the
// Postgres outbox, so it only runs when both are configured.
func startOutboxRelay(ctx context.Context, cfg config.Config, in *infra, log *slog.Logger, app *application) error {
	if len(cfg.Audit.KafkaBrokers) == 0 {
		return nil
	}
	if in.db == nil {
		log.Warn("kafka brokers configured without postgres; audit relay disabled")
		return nil
	}

	producer, err := kafka.NewProducer(cfg.Audit.KafkaBrokers, kafka.WithLogger(log))
	if err != nil {
		return err
	}
	app.onClose(func(context.Context) { producer.Close() })

	topics := []string{
		cfg.Audit.KafkaTopic + "." + string(audit.CategoryCompliance),
		cfg.Audit.KafkaTopic + "." + string(audit.CategorySecurity),
		cfg.Audit.KafkaTopic + "." + string(audit.CategoryOperations),
	}
	if err := producer.EnsureTopics(ctx, 3, 1, topics...); err != nil {
		log.Warn("could not ensure audit topics", "error", err)
	}

	relayCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	relay := worker.NewWorker(in.db, producer, cfg.Audit.KafkaTopic,
		worker.WithLogger(log),
		worker.WithInterval(cfg.Audit.OutboxInterval),
	)
	go func() {
		defer close(done)
		_ = relay.Run(relayCtx)
	}()
	app.onClose(func(ctx context.Context) {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
		}
	})
	return nil
}

func healthChecks(in *infra) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	return checks
}
