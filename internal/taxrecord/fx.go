package taxrecord

import (
	"github.com/smallbiznis/taxmate/internal/taxrecord/domain"
	"github.com/smallbiznis/taxmate/internal/taxrecord/repository"
	"github.com/smallbiznis/taxmate/internal/taxrecord/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taxrecord.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) domain.Store { return s },
	),
)
