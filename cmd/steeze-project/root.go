package main

import (
	"github.com/joeydtaylor/steeze-project/pkg/serverfx"
	"github.com/spf13/cobra"
)

type flags struct {
	service  string
	config   string
	manifest string
	tasks    string
	listen   string
	watch    bool
}

// options turns the flags the user set into serverfx options; unset flags
// keep the APP_* environment defaults.
func (f *flags) options(cmd *cobra.Command) []serverfx.Option {
	var opts []serverfx.Option
	set := cmd.Flags().Changed
	if set("service") {
		opts = append(opts, serverfx.WithService(f.service))
	}
	if set("config") {
		opts = append(opts, serverfx.WithConfigFile(f.config))
	}
	if set("manifest") {
		opts = append(opts, serverfx.WithManifest(f.manifest))
	}
	if set("tasks") {
		opts = append(opts, serverfx.WithTasks(f.tasks))
	}
	if set("listen") {
		opts = append(opts, serverfx.WithListen(f.listen))
	}
	if set("watch") {
		opts = append(opts, serverfx.WithWatch(f.watch))
	}
	return opts
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:          "steeze-project",
		Short:        "Bootstrap an App and serve its methods over HTTP",
		Version:      version,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.service, "service", "app", "service name, also the env prefix for config overrides")
	pf.StringVarP(&f.config, "config", "c", "", "app config file (toml, yaml or json)")
	pf.StringVarP(&f.tasks, "tasks", "t", "", "init task unit file or directory; units name tasks registered in this binary (app.log-config)")

	root.AddCommand(newServeCmd(f), newMethodsCmd(f))
	return root
}
