package svc

import (
	"context"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "pfolio-api/internal/cache"
	"pfolio-api/internal/config"
	"pfolio-api/internal/model"
	enginepersist "pfolio-api/internal/persistence/engine"
	"pfolio-api/pkg/analytics"
	"pfolio-api/pkg/forecast"
	marketpkg "pfolio-api/pkg/market"
	"pfolio-api/pkg/optimize"
	"pfolio-api/pkg/scenario"
	"pfolio-api/pkg/sentiment"
	"pfolio-api/pkg/snapshot"
	"pfolio-api/pkg/tools"
	"pfolio-api/pkg/universe"
)

// ServiceContext wires the engines behind the tool registry.
type ServiceContext struct {
	Config *config.Config

	Gate    *universe.Gate
	Catalog *universe.Catalog

	MarketProviders map[string]marketpkg.Provider
	Market          marketpkg.Provider

	Snapshots   *snapshot.Store
	Correlation *analytics.CorrelationEngine
	Risk        *analytics.RiskEngine
	Performance *analytics.PerformanceEngine
	Optimizer   *optimize.Engine
	Forecaster  *forecast.Engine
	Scenarios   *scenario.Engine
	Sentiment   *sentiment.Engine

	Registry *tools.Registry

	// Optional Postgres wiring; nil without a DSN.
	DBConn         sqlx.SqlConn
	SnapshotsModel model.SnapshotsModel
	SentimentModel model.SentimentCacheModel
	Persistence    *enginepersist.Service
}

func NewServiceContext(c *config.Config) *ServiceContext {
	svc := &ServiceContext{Config: c}

	gate := universe.NewGate(universe.NewDirModelStore(c.ModelsDir()))
	catalog, err := universe.NewCatalog(gate)
	if err != nil {
		log.Fatalf("failed to load index catalog: %v", err)
	}
	svc.Gate = gate
	svc.Catalog = catalog

	// Build market providers from the section file; without one the
	// deterministic synthetic provider serves history.
	if c.Market.Enabled() {
		providers, err := c.Market.Value.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build market providers: %v", err)
		}
		svc.MarketProviders = providers
		svc.Market, err = c.Market.Value.DefaultProvider(providers)
		if err != nil {
			log.Fatalf("failed to resolve default market provider: %v", err)
		}
	} else {
		svc.Market = marketpkg.NewSyntheticProvider(1)
	}

	// Only inject DB models when a DSN is provided; the engines work fully
	// in-memory without one.
	if c.Postgres.DSN != "" {
		conn := sqlx.NewSqlConn("pgx", c.Postgres.DSN)
		svc.DBConn = conn
		svc.SnapshotsModel = model.NewSnapshotsModel(conn)
		svc.SentimentModel = model.NewSentimentCacheModel(conn)
		svc.Persistence = enginepersist.NewService(enginepersist.Config{
			SQLConn:        conn,
			SnapshotsModel: svc.SnapshotsModel,
			SentimentModel: svc.SentimentModel,
			TTL:            cachekeys.NewTTLSet(c.TTL),
		})
	}

	var storeOpts []snapshot.Option
	if svc.Persistence != nil {
		storeOpts = append(storeOpts, snapshot.WithPersistence(svc.Persistence))
	}
	svc.Snapshots = snapshot.NewStore(storeOpts...)
	if svc.Persistence != nil {
		if err := svc.Persistence.RestoreSnapshots(context.Background(), svc.Snapshots); err != nil {
			logx.Errorf("svc: restore snapshots: %v", err)
		}
	}

	svc.Correlation = analytics.NewCorrelationEngine(c.Engines.Correlation)
	svc.Risk = analytics.NewRiskEngine(c.Engines.Risk)
	svc.Performance = analytics.NewPerformanceEngine(c.Engines.Performance)
	svc.Optimizer = optimize.NewEngine(c.Engines.Optimize)
	svc.Forecaster = forecast.NewEngine(c.Engines.Forecast, gate, &forecast.DirModelSource{Dir: c.ModelsDir()}, svc.Market, svc.Snapshots)
	svc.Scenarios = scenario.NewEngine(svc.Snapshots)

	news := sentiment.NewResilientNewsProvider("static", &sentiment.StaticNewsProvider{})
	var scorer sentiment.Scorer
	if strings.TrimSpace(c.SentimentLLM.APIKey) != "" {
		llm, err := sentiment.NewLLMScorer(c.SentimentLLM)
		if err != nil {
			log.Fatalf("failed to build sentiment llm scorer: %v", err)
		}
		scorer = llm
	}
	svc.Sentiment = sentiment.NewEngine(c.Engines.Sentiment, gate, news, scorer)

	svc.Registry = svc.buildRegistry()
	return svc
}
