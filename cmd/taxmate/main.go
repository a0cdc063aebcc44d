package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/taxmate/internal/clock"
	"github.com/smallbiznis/taxmate/internal/config"
	"github.com/smallbiznis/taxmate/internal/dashboardcache"
	"github.com/smallbiznis/taxmate/internal/dispatcher"
	"github.com/smallbiznis/taxmate/internal/ingest"
	"github.com/smallbiznis/taxmate/internal/invoiceparse"
	"github.com/smallbiznis/taxmate/internal/migration"
	"github.com/smallbiznis/taxmate/internal/observability"
	"github.com/smallbiznis/taxmate/internal/ratelimit"
	"github.com/smallbiznis/taxmate/internal/redisclient"
	reportingservice "github.com/smallbiznis/taxmate/internal/reporting/service"
	"github.com/smallbiznis/taxmate/internal/server"
	"github.com/smallbiznis/taxmate/internal/taxrecord"
	"github.com/smallbiznis/taxmate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	// amounts are emitted as JSON numbers, in API responses and cached snapshots alike
	decimal.MarshalJSONWithoutQuotes = true

	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redisclient.Module,
		ratelimit.Module,
		migration.Module,
		dispatcher.Module,

		// Functional Domains
		taxrecord.Module,
		dashboardcache.Module,
		reportingservice.Module,
		invoiceparse.Module,
		ingest.Module,
		fx.Provide(func(s *reportingservice.Service) ingest.Invalidator { return s }),

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
