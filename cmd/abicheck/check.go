package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wippyai/stable-abi/loader"
)

var checkCmd = &cobra.Command{
	Use:   "check <expected.so> <found.so>",
	Short: "Check a module against the image it will be loaded into",
	Args:  cobra.ExactArgs(2),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("config", "", "loader configuration file (TOML)")
	checkCmd.Flags().String("policy", "", "override the configured policy (abort|reject-items)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := loader.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		c, err := loader.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = *c
	}
	if p, _ := cmd.Flags().GetString("policy"); p != "" {
		cfg.Policy = loader.Policy(p)
	}

	expected, err := loader.OpenPlugin(args[0])
	if err != nil {
		return err
	}
	found, err := loader.OpenPlugin(args[1])
	if err != nil {
		return err
	}

	host, ok := expected.Image().(loader.Host)
	if !ok {
		return fmt.Errorf("%s: image does not support version resolution", args[0])
	}
	l, err := loader.New(host, cfg)
	if err != nil {
		return err
	}

	r := newRenderer(cmd.OutOrStdout(), useColor(cmd))
	loaded, err := l.Load(context.Background(), found)
	if err != nil {
		r.failure(found.Name(), err)
		return err
	}
	r.loaded(loaded)
	if len(loaded.Rejected) > 0 {
		return fmt.Errorf("%d item(s) rejected", len(loaded.Rejected))
	}
	return nil
}
