package main

import (
	"fmt"

	"github.com/joeydtaylor/steeze-project/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-project/pkg/serverfx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMethodsCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "methods",
		Short: "Init the App and list its registered methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := serverfx.NewApp(serverfx.NewConfig(f.options(cmd)...), zap.NewNop(), metrics.MethodObserver{})
			if err != nil {
				return err
			}
			fut, err := app.Init(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if _, err := fut.Await(cmd.Context()); err != nil {
				return err
			}
			for _, name := range app.Methods.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
