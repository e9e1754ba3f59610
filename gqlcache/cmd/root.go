/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package cmd

import (
	"context"
	goflag "flag"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hypermodeinc/gqlcache/gqlcache/cmd/gc"
	"github.com/hypermodeinc/gqlcache/gqlcache/cmd/inspect"
	"github.com/hypermodeinc/gqlcache/gqlcache/cmd/read"
	"github.com/hypermodeinc/gqlcache/gqlcache/cmd/version"
	"github.com/hypermodeinc/gqlcache/gqlcache/cmd/write"
	"github.com/hypermodeinc/gqlcache/x"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gqlcache",
	Short: "gqlcache: normalized GraphQL result cache",
	Long: `
gqlcache normalizes GraphQL results into a flat store of records keyed by node id,
and reads query results back out of it. The store is kept in a snapshot directory
between invocations.
` + x.BuildDetails(),
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

var (
	rootConf = viper.New()

	stopTracing func(context.Context) error
	metricsSrv  *http.Server
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := run()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the root command. Cobra skips post-run hooks when a command fails, so
// teardown happens here.
func run() error {
	err := RootCmd.Execute()
	if terr := teardown(); terr != nil {
		glog.Errorf("Error during teardown: %v", terr)
		if err == nil {
			err = terr
		}
	}
	if err != nil {
		glog.V(1).Infof("Command failed: %v", err)
	}
	return err
}

var subcommands = []*x.SubCommand{
	&write.Write, &read.Read, &inspect.Inspect, &gc.GC, &version.Version,
}

func init() {
	RootCmd.PersistentFlags().String("config", "",
		"Configuration file. Takes precedence over default values, but is "+
			"overridden to values set with environment variables and flags.")
	RootCmd.PersistentFlags().Bool("trace", false,
		"Print a trace span for every cache operation to stderr.")
	RootCmd.PersistentFlags().String("metrics_addr", "",
		"Serve Prometheus metrics on this address while the command runs.")
	RootCmd.PersistentFlags().Int64("doc_cache_size", x.Config.DocCacheSize,
		"Number of parsed documents memoized by the cache.")
	RootCmd.PersistentFlags().StringSlice("id_fields", x.Config.IDFields,
		"Object fields consulted, in order, to identify written objects.")
	x.Check(rootConf.BindPFlags(RootCmd.PersistentFlags()))

	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	// Always set stderrthreshold=0. Don't let users set it themselves.
	x.Check(flag.Set("stderrthreshold", "0"))
	x.Check(flag.CommandLine.MarkDeprecated("stderrthreshold",
		"gqlcache always sets this flag to 0. It can't be overwritten."))

	for _, sc := range subcommands {
		RootCmd.AddCommand(sc.Cmd)
		sc.Conf = viper.New()
		x.Check(sc.Conf.BindPFlags(sc.Cmd.Flags()))
		x.Check(sc.Conf.BindPFlags(RootCmd.PersistentFlags()))
		sc.Conf.AutomaticEnv()
		sc.Conf.SetEnvPrefix(sc.EnvPrefix)
	}
	cobra.OnInitialize(func() {
		cfg := rootConf.GetString("config")
		if cfg == "" {
			return
		}
		for _, sc := range subcommands {
			sc.Conf.SetConfigFile(cfg)
			x.Check(x.Wrapf(sc.Conf.ReadInConfig(), "reading config"))
		}
		rootConf.SetConfigFile(cfg)
		x.Check(x.Wrapf(rootConf.ReadInConfig(), "reading config"))
	})
}

func setup(cmd *cobra.Command, args []string) error {
	x.Config.DocCacheSize = rootConf.GetInt64("doc_cache_size")
	if fields := rootConf.GetStringSlice("id_fields"); len(fields) > 0 {
		x.Config.IDFields = fields
	}
	x.Init(bool(glog.V(2)))

	if rootConf.GetBool("trace") {
		stop, err := x.InitTracing(os.Stderr)
		if err != nil {
			return err
		}
		stopTracing = stop
	}
	if addr := rootConf.GetString("metrics_addr"); addr != "" {
		return serveMetrics(addr)
	}
	return nil
}

func serveMetrics(addr string) error {
	handler, err := x.PrometheusHandler()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return x.Wrapf(err, "while listening on %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/debug/prometheus_metrics", handler)
	metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := metricsSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			glog.Errorf("Metrics server stopped: %v", err)
		}
	}()
	glog.Infof("Serving metrics on %s", ln.Addr())
	return nil
}

func teardown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		x.Ignore(metricsSrv.Shutdown(ctx))
		metricsSrv = nil
	}
	if stopTracing != nil {
		err := stopTracing(ctx)
		stopTracing = nil
		return err
	}
	return nil
}
