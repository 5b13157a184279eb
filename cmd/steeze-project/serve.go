package main

import (
	"github.com/joeydtaylor/steeze-project/pkg/serverfx"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func newServeCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Init the App, then serve the manifest routes",
		Long: `Init the App, then serve the manifest routes.

The server starts listening only after every init hook and task unit has
completed. Unset flags fall back to APP_CONFIG, APP_MANIFEST, APP_TASKS and
SERVER_LISTEN_ADDRESS.

Examples:
  steeze-project serve --manifest manifest.toml --tasks ./units
  steeze-project serve -c app.yaml --watch --listen :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := fx.New(
				serverfx.Module(f.options(cmd)...),
				fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: l.Named("fx")}
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.manifest, "manifest", "m", "manifest.toml", "route manifest")
	cmd.Flags().StringVarP(&f.listen, "listen", "l", ":4000", "listen address")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "reload the config file on change")
	return cmd
}
