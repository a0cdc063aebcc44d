package dispatcher

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("dispatcher",
	fx.Provide(NewConfig),
	fx.Provide(New),
	fx.Provide(func(d *Dispatcher) Submitter { return d }),
	fx.Invoke(run),
)

func run(lc fx.Lifecycle, d *Dispatcher) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			d.Start()
			return nil
		},
		OnStop: d.Stop,
	})
}
