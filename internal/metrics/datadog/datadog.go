// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Samples are buffered in memory under a mutex, submitted on a periodic
// Flush() ticker, and flushed one final time on Close(). This yields a time
// series while a long batch of model runs is in flight and still covers the
// short single-run case with the tail flush.
//
// Concurrency model:
//   - callers record counters/histograms at any time
//   - Flush snapshots and resets buffers under the mutex, then submits
//     out-of-lock
//   - the flush loop calls Flush() periodically; Close() stops the loop
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"aimclient/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "aim".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls submission cadence. Defaults to 60s when <= 0.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these; unit tests
	// use them to avoid real submission and nondeterministic clocks.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK we depend on,
// kept private so tests can stub submission without real HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counters map[string]float64   // metric|sorted-labels -> sum
	samples  map[string][]float64 // metric|sorted-labels -> observations
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. Construction does not touch the network; submission
// errors surface from Flush/Close.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "aim"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		cfg := dd.NewConfiguration()
		client := dd.NewAPIClient(cfg)
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[string]float64),
		samples:    make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Close must be
// called at most once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	key := seriesKey(name, labels)

	b.mu.Lock()
	b.counters[key] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend. Each series is submitted as
// avg and max gauges on Flush.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	key := seriesKey(name, labels)

	b.mu.Lock()
	b.samples[key] = append(b.samples[key], value)
	b.mu.Unlock()
}

// Flush snapshots and resets the buffers, then submits the snapshot.
// An empty snapshot submits nothing.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counters := b.counters
	samples := b.samples
	b.counters = make(map[string]float64)
	b.samples = make(map[string][]float64)
	b.mu.Unlock()

	series := b.buildSeries(counters, samples, b.now().Unix())
	if len(series) == 0 {
		return nil
	}

	_, _, err := b.api.SubmitMetrics(b.ctx, datadogV2.MetricPayload{Series: series})
	return err
}

func (b *Backend) buildSeries(counters map[string]float64, samples map[string][]float64, ts int64) []datadogV2.MetricSeries {
	var series []datadogV2.MetricSeries

	point := func(v float64) []datadogV2.MetricPoint {
		return []datadogV2.MetricPoint{{
			Timestamp: dd.PtrInt64(ts),
			Value:     dd.PtrFloat64(v),
		}}
	}

	for _, key := range sortedKeys(counters) {
		name, tags := splitSeriesKey(key)
		series = append(series, datadogV2.MetricSeries{
			Metric: name,
			Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
			Points: point(counters[key]),
			Tags:   append(tags, b.baseTags...),
		})
	}

	for _, key := range sortedSampleKeys(samples) {
		vals := samples[key]
		if len(vals) == 0 {
			continue
		}
		sum, max := 0.0, vals[0]
		for _, v := range vals {
			sum += v
			if v > max {
				max = v
			}
		}

		name, tags := splitSeriesKey(key)
		tags = append(tags, b.baseTags...)

		series = append(series,
			datadogV2.MetricSeries{
				Metric: name + ".avg",
				Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
				Points: point(sum / float64(len(vals))),
				Tags:   tags,
			},
			datadogV2.MetricSeries{
				Metric: name + ".max",
				Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
				Points: point(max),
				Tags:   tags,
			},
		)
	}

	return series
}

// seriesKey flattens name+labels into "name|k:v,k:v" with sorted label keys,
// so equal series aggregate regardless of map iteration order.
func seriesKey(name string, labels metrics.Labels) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+labels[k])
	}
	return name + "|" + strings.Join(parts, ",")
}

func splitSeriesKey(key string) (name string, tags []string) {
	name, rest, ok := strings.Cut(key, "|")
	if !ok || rest == "" {
		return name, nil
	}
	return name, strings.Split(rest, ",")
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSampleKeys(m map[string][]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseTagsCSV splits a comma-separated tag list, trimming blanks.
func ParseTagsCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
