package invoiceparse

import "go.uber.org/fx"

var Module = fx.Module("invoice.parse",
	fx.Provide(NewHTTPExtractor),
	fx.Provide(NewProcessor),
)
