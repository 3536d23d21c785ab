package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"openproxy/pkg/proxy"
)

func newParseCmd(a *app) *cobra.Command {
	var (
		output   string
		typeName string
		full     bool
		dedup    bool
	)

	cmd := &cobra.Command{
		Use:   "parse <input>",
		Short: "Parse a proxy list and normalise it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.loadConfig(); err != nil {
				return err
			}
			typ, err := proxy.ParseType(typeName)
			if err != nil {
				return err
			}

			proxies, err := proxy.ParseFile(args[0], typ)
			if err != nil {
				return err
			}
			if dedup {
				proxies = proxy.Dedup(proxies)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(cmd.ErrOrStderr(), "Parsed %d proxies from %s\n", len(proxies), args[0])
			if output == "" {
				for _, p := range proxies {
					fmt.Fprintln(out, render(p, full))
				}
				return nil
			}

			if err := proxy.SaveToFile(proxies, output, full); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved parsed proxies to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write parsed proxies to this file instead of stdout")
	cmd.Flags().StringVarP(&typeName, "type", "t", "http", "default proxy type (http, https, socks4, socks5)")
	cmd.Flags().BoolVar(&full, "full", true, "keep credentials (host:port:user:pass)")
	cmd.Flags().BoolVar(&dedup, "dedup", false, "drop duplicate host:port entries")
	return cmd
}

func render(p proxy.Proxy, full bool) string {
	if full {
		return p.FullString()
	}
	return p.SimpleString()
}
