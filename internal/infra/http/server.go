package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"certus/internal/config"
	"certus/internal/domain"
	"certus/internal/infra/archive"
	"certus/internal/infra/cachemem"
	"certus/internal/infra/crypto"
	"certus/internal/infra/db"
	"certus/internal/infra/metrics"
	"certus/internal/infra/objectstore"
	"certus/internal/infra/policyopa"
	"certus/internal/infra/ratelimit"
	"certus/internal/infra/sources"
	"certus/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var errStoreRequired = errors.New("database store is required")

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	issueUC     *usecase.IssueProof
	cascadeUC   *usecase.VerifyCascade
	batcherUC   *usecase.SnapshotBatcher
	publisherUC *usecase.MirrorPublisher
	auditUC     *usecase.RecoveryAudit

	proofs    usecase.ProofRepository
	snapshots usecase.SnapshotRepository
	crypto    *crypto.Service

	metrics  *metrics.Metrics
	registry *prometheus.Registry

	adminAPIKey string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool

	redisClient *redis.Client

	initErr error
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.routes()
	return s
}

// ServerDeps lets tests and alternative entrypoints inject fully built
// usecases instead of going through initDeps.
type ServerDeps struct {
	Issue       *usecase.IssueProof
	Cascade     *usecase.VerifyCascade
	Batcher     *usecase.SnapshotBatcher
	Publisher   *usecase.MirrorPublisher
	Audit       *usecase.RecoveryAudit
	Proofs      usecase.ProofRepository
	Snapshots   usecase.SnapshotRepository
	Crypto      *crypto.Service
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
	AdminAPIKey string
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		issueUC:     deps.Issue,
		cascadeUC:   deps.Cascade,
		batcherUC:   deps.Batcher,
		publisherUC: deps.Publisher,
		auditUC:     deps.Audit,
		proofs:      deps.Proofs,
		snapshots:   deps.Snapshots,
		crypto:      deps.Crypto,
		metrics:     deps.Metrics,
		registry:    deps.Registry,
		adminAPIKey: deps.AdminAPIKey,
	}
	if s.metrics == nil {
		s.metrics, s.registry = metrics.New()
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	s.adminAPIKey = s.cfg.AdminAPIKey
	s.metrics, s.registry = metrics.New()

	cryptoSvc, err := crypto.NewServiceFromKeys(
		s.cfg.SigningPrivateKeyBase64,
		s.cfg.SigningPrivateKeySeedHex,
		s.cfg.PreviousPrivateKeyBase64,
		s.cfg.PreviousPrivateKeySeedHex,
	)
	if err != nil {
		s.initErr = err
		return
	}
	s.crypto = cryptoSvc

	var store usecase.ObjectStore
	switch s.cfg.ObjectStoreBackend {
	case "redis":
		redisStore, err := objectstore.NewRedis(s.redis(), s.cfg.ObjectStorePrefix)
		if err != nil {
			s.initErr = err
			return
		}
		store = redisStore
	default:
		store = objectstore.NewMemory(s.cfg.ObjectStorePrefix)
	}

	var archiveClient usecase.ArchiveClient
	if s.cfg.ArchiveBaseURL != "" {
		client, err := archive.NewClient(s.cfg.ArchiveBaseURL, s.cfg.ArchiveAPIKey, time.Duration(s.cfg.ArchiveTimeoutSeconds)*time.Second, nil)
		if err != nil {
			s.initErr = err
			return
		}
		archiveClient = client
	} else {
		archiveClient = archive.NewMemory()
	}

	var engine *policyopa.Engine
	if s.cfg.PolicyBundlePath != "" {
		engine, err = policyopa.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath, s.cfg.PolicyBundleID)
		if err != nil {
			s.initErr = err
			return
		}
		log.Printf("policy bundle %s loaded, hash %s", engine.BundleID(), engine.BundleHash())
	}

	if s.store == nil {
		s.initErr = errStoreRequired
		return
	}
	proofRepo := db.NewProofRepository(s.store.DB)
	snapshotRepo := db.NewSnapshotRepository(s.store.DB)
	auditRepo := db.NewAuditRepository(s.store.DB)
	outboxRepo := db.NewOutboxRepository(s.store.DB)
	s.proofs = proofRepo
	s.snapshots = snapshotRepo

	cache := cachemem.New(s.cfg.CacheTTL())
	sourceChain := []domain.Source{
		&sources.ObjectStoreSource{Store: store},
		&sources.DatastoreSource{Proofs: proofRepo},
		&sources.CacheSource{Cache: cache},
	}

	s.issueUC = &usecase.IssueProof{
		Proofs:  proofRepo,
		Crypto:  cryptoSvc,
		Store:   store,
		Cache:   cache,
		Metrics: s.metrics,
	}
	if engine != nil {
		s.issueUC.Policy = engine
	}
	s.cascadeUC = &usecase.VerifyCascade{
		Sources:       sourceChain,
		Crypto:        cryptoSvc,
		Tolerance:     s.cfg.VerifyTolerance(),
		SourceTimeout: s.cfg.SourceTimeout(),
		Metrics:       s.metrics,
	}
	s.publisherUC = &usecase.MirrorPublisher{
		Proofs:    proofRepo,
		Snapshots: snapshotRepo,
		Outbox:    outboxRepo,
		Store:     store,
		Archive:   archiveClient,
		Metrics:   s.metrics,
	}
	s.batcherUC = &usecase.SnapshotBatcher{
		Proofs:    proofRepo,
		Snapshots: snapshotRepo,
		Publisher: s.publisherUC,
		Threshold: s.cfg.SnapshotThreshold,
		Metrics:   s.metrics,
	}
	s.auditUC = &usecase.RecoveryAudit{
		Proofs:        proofRepo,
		Snapshots:     snapshotRepo,
		Audits:        auditRepo,
		Sources:       sourceChain,
		Crypto:        cryptoSvc,
		Interval:      s.cfg.AuditInterval(),
		ProofTrigger:  int64(s.cfg.AuditProofThreshold),
		RunLimit:      s.cfg.AuditRunLimit,
		SourceTimeout: s.cfg.SourceTimeout(),
		Metrics:       s.metrics,
	}

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.redis(), nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(nil)
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

// redis returns the process-wide redis client, shared between the object
// store backend and the rate limiter.
func (s *Server) redis() *redis.Client {
	if s.redisClient == nil {
		s.redisClient = redis.NewClient(&redis.Options{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
	}
	return s.redisClient
}

// Batcher exposes the snapshot usecase to the background job loop.
func (s *Server) Batcher() *usecase.SnapshotBatcher { return s.batcherUC }

// Publisher exposes the archive publisher to the background job loop.
func (s *Server) Publisher() *usecase.MirrorPublisher { return s.publisherUC }

// Audit exposes the audit engine to the background job loop.
func (s *Server) Audit() *usecase.RecoveryAudit { return s.auditUC }

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})
	if s.registry != nil {
		s.r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	v1 := s.r.Group("/v1")
	{
		v1.POST("/proofs", s.limited("proofs:create", s.handleCreateProof))
		v1.POST("/proofs/file", s.limited("proofs:create", s.handleCreateProofFile))
		v1.GET("/proofs/:id", s.handleGetProof)
		v1.GET("/verify/:hash", s.limited("verify", s.handleVerifyHash))
		v1.POST("/verify/file", s.limited("verify", s.handleVerifyFile))
		v1.GET("/snapshots/status", s.handleSnapshotStatus)
		v1.GET("/snapshots/:batch/manifest", s.handleSnapshotManifest)

		v1.POST("/snapshots/check", s.admin(s.handleSnapshotCheck))
		v1.POST("/audit/run", s.admin(s.handleAuditRun))
		v1.GET("/audit/cross-mirror", s.admin(s.handleCrossMirror))
		v1.POST("/archive/republish", s.admin(s.handleArchiveRepublish))
		v1.POST("/keys/rotate", s.admin(s.handleRotateKey))
	}
}

func (s *Server) Handler() http.Handler {
	return s.r
}

// InitError reports what went wrong while wiring dependencies, if anything.
func (s *Server) InitError() error {
	return s.initErr
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
