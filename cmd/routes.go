package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/redraskal/gateway/internal/config"
	"github.com/redraskal/gateway/internal/logging"
	"github.com/redraskal/gateway/internal/registry"
	"github.com/redraskal/gateway/internal/router"
)

var routesFormat string

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the routes of the pages directory",
	Long: `List every loaded route in match order together with its page file.

Examples:
  gateway routes
  gateway routes -f json`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().StringVarP(&routesFormat, "format", "f", formatText, "Output format (text, json, yaml)")
}

// RouteInfo describes one loaded route.
type RouteInfo struct {
	Pattern   string `json:"pattern" yaml:"pattern"`
	File      string `json:"file" yaml:"file"`
	Dynamic   bool   `json:"dynamic" yaml:"dynamic"`
	WebSocket bool   `json:"websocket" yaml:"websocket"`
	Cached    bool   `json:"cached" yaml:"cached"`
	NotFound  bool   `json:"not_found,omitempty" yaml:"not_found,omitempty"`
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	table, err := loadRoutes(contextOf(cmd), cfg, logging.Discard())
	if err != nil {
		return err
	}

	routes := describeRoutes(table)
	if routesFormat != formatText {
		return writeFormatted(cmd.OutOrStdout(), routesFormat, routes)
	}

	if len(routes) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No routes found in %s\n", cfg.PagesDir)
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATTERN\tFILE\tFLAGS")
	for _, r := range routes {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Pattern, r.File, r.flags())
	}
	return w.Flush()
}

// describeRoutes lists the table's routes in match order, followed by the
// not-found page when one exists.
func describeRoutes(table *registry.Table) []RouteInfo {
	rt := router.New(table.Keys())
	var out []RouteInfo
	for _, key := range rt.Routes() {
		out = append(out, describe(table, key, rt.IsDynamic(key)))
	}
	if nf := table.NotFound(); nf != nil {
		info := describe(table, nf.Key, false)
		info.NotFound = true
		out = append(out, info)
	}
	return out
}

func describe(table *registry.Table, key string, dynamic bool) RouteInfo {
	entry, _ := table.Get(key)
	_, cached := entry.Cached()
	return RouteInfo{
		Pattern:   router.PatternName(key),
		File:      key,
		Dynamic:   dynamic,
		WebSocket: entry.Socket != nil,
		Cached:    cached,
	}
}

func (r RouteInfo) flags() string {
	var s string
	add := func(ok bool, flag string) {
		if !ok {
			return
		}
		if s != "" {
			s += ","
		}
		s += flag
	}
	add(r.Dynamic, "dynamic")
	add(r.WebSocket, "ws")
	add(r.Cached, "cached")
	add(r.NotFound, "404")
	if s == "" {
		return "-"
	}
	return s
}
