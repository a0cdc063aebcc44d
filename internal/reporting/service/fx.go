package service

import "go.uber.org/fx"

var Module = fx.Module("reporting.service",
	fx.Provide(New),
)
