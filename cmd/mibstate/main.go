// Command mibstate is the operator tool for the state store: inspect the
// state document, fold legacy state files into the unified format and list
// value links.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simwire/mibstate/schema"
	"github.com/simwire/mibstate/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		schemaDir string
		statePath string
	)

	root := &cobra.Command{
		Use:           "mibstate",
		Short:         "Inspect and maintain the table state store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&schemaDir, "schema-dir", "schemas", "directory of schema documents")
	root.PersistentFlags().StringVar(&statePath, "state", "data/mib_state.json", "path of the unified state document")

	open := func() (*store.Store, error) {
		set, err := schema.LoadDir(schemaDir)
		if err != nil {
			return nil, fmt.Errorf("load schemas: %w", err)
		}
		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		cfg := store.DefaultConfig()
		cfg.StatePath = statePath
		return store.New(set, cfg, logger), nil
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the state document after load-time repair",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			if err := s.Save(); err != nil {
				return err
			}
			data, err := os.ReadFile(statePath)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Fold legacy state files into the unified document",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			if err := s.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "state written to %s\n", statePath)
			return nil
		},
	}

	var stateOnly bool
	linksCmd := &cobra.Command{
		Use:   "links",
		Short: "List value links",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(s.Links(stateOnly), "", "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		},
	}
	linksCmd.Flags().BoolVar(&stateOnly, "state-only", false, "only operator-created links")

	root.AddCommand(dump, migrate, linksCmd)
	return root
}
