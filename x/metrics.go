/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"context"
	"net/http"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/golang/glog"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	// Cumulative metrics.
	NumWrites = stats.Int64("cache_writes_total",
		"Total number of result writes", stats.UnitDimensionless)
	NumReads = stats.Int64("cache_reads_total",
		"Total number of result reads", stats.UnitDimensionless)
	NumMissingFields = stats.Int64("cache_missing_fields_total",
		"Total number of reads or writes that hit a missing field", stats.UnitDimensionless)
	NumEvictions = stats.Int64("cache_evictions_total",
		"Total number of nodes evicted or collected", stats.UnitDimensionless)
	LatencyMs = stats.Float64("cache_latency",
		"Latency of the cache operations", stats.UnitMilliseconds)

	// Point-in-time metrics.
	NumNodes = stats.Int64("cache_nodes",
		"Number of node records in the store", stats.UnitDimensionless)

	// Tag keys here
	KeyStatus, _ = tag.NewKey("status")
	KeyMethod, _ = tag.NewKey("method")

	// Tag values here
	TagValueStatusOK    = "ok"
	TagValueStatusError = "error"

	defaultLatencyMsDistribution = view.Distribution(
		0, 0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16,
		20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500)

	allTagKeys = []tag.Key{
		KeyStatus, KeyMethod,
	}

	allViews = []*view.View{
		{
			Name:        LatencyMs.Name(),
			Measure:     LatencyMs,
			Description: LatencyMs.Description(),
			Aggregation: defaultLatencyMsDistribution,
			TagKeys:     allTagKeys,
		},
		{
			Name:        NumWrites.Name(),
			Measure:     NumWrites,
			Description: NumWrites.Description(),
			Aggregation: view.Count(),
			TagKeys:     allTagKeys,
		},
		{
			Name:        NumReads.Name(),
			Measure:     NumReads,
			Description: NumReads.Description(),
			Aggregation: view.Count(),
			TagKeys:     allTagKeys,
		},
		{
			Name:        NumMissingFields.Name(),
			Measure:     NumMissingFields,
			Description: NumMissingFields.Description(),
			Aggregation: view.Count(),
			TagKeys:     allTagKeys,
		},
		{
			Name:        NumEvictions.Name(),
			Measure:     NumEvictions,
			Description: NumEvictions.Description(),
			Aggregation: view.Sum(),
			TagKeys:     allTagKeys,
		},

		// Last value aggregations
		{
			Name:        NumNodes.Name(),
			Measure:     NumNodes,
			Description: NumNodes.Description(),
			Aggregation: view.LastValue(),
		},
	}
)

func init() {
	Check(view.Register(allViews...))
}

// PrometheusHandler creates an OpenCensus Prometheus exporter backed by its own
// registry, registers it for all views and returns it as an http.Handler.
func PrometheusHandler() (http.Handler, error) {
	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: "gqlcache",
		Registry:  promclient.NewRegistry(),
		OnError:   func(err error) { glog.Errorf("%v", err) },
	})
	if err != nil {
		return nil, Wrapf(err, "failed to create OpenCensus Prometheus exporter")
	}
	view.RegisterExporter(pe)
	return pe, nil
}

// WithMethod returns a new updated context with the tag KeyMethod set to the given value.
func WithMethod(parent context.Context, method string) context.Context {
	ctx, err := tag.New(parent, tag.Upsert(KeyMethod, method))
	Check(err)
	return ctx
}

// RecordOp records the latency and the status of one cache operation.
func RecordOp(ctx context.Context, start time.Time, err error, measures ...stats.Measurement) {
	status := TagValueStatusOK
	if err != nil {
		status = TagValueStatusError
	}
	cctx, tagErr := tag.New(ctx, tag.Upsert(KeyStatus, status))
	if tagErr != nil {
		cctx = ctx
	}
	if IsMissingField(err) {
		measures = append(measures, NumMissingFields.M(1))
	}
	measures = append(measures, LatencyMs.M(SinceMs(start)))
	stats.Record(cctx, measures...)
}

// SinceMs returns the time since startTime in milliseconds (as a float).
func SinceMs(startTime time.Time) float64 {
	return float64(time.Since(startTime)) / 1e6
}
