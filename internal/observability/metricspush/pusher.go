package metricspush

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/prometheus/prompb"
	"github.com/smallbiznis/licensehub/internal/config"
	obstracing "github.com/smallbiznis/licensehub/internal/observability/tracing"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

const (
	exporterRemoteWrite = "prometheus_remote_write"
	exporterPushgateway = "prometheus_pushgateway"

	// only the service's own families leave the process; runtime metrics
	// stay on /metrics
	metricPrefix = "licensehub_"

	defaultPushTimeout = 5 * time.Second
	maxErrorBody       = 512
)

// Pusher ships a snapshot of gathered metrics somewhere outside the process.
type Pusher interface {
	Push(ctx context.Context, gatherer prometheus.Gatherer) error
}

// NewPusher returns nil when pushing is disabled or misconfigured; the
// problem is logged and the service keeps running.
func NewPusher(cfg config.Config, log *zap.Logger) Pusher {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.MetricsPush.Enabled {
		return nil
	}
	pusher, err := buildPusher(cfg)
	if err != nil {
		log.Warn("metrics push disabled", zap.Error(err))
		return nil
	}
	return pusher
}

func buildPusher(cfg config.Config) (Pusher, error) {
	pushCfg := cfg.MetricsPush
	endpoint := strings.TrimSpace(pushCfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("metrics push endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid metrics push endpoint: %w", err)
	}

	labels := map[string]string{
		"service":     strings.TrimSpace(cfg.AppName),
		"environment": strings.TrimSpace(cfg.Environment),
	}
	switch exporter := strings.ToLower(strings.TrimSpace(pushCfg.Exporter)); exporter {
	case exporterRemoteWrite, "":
		return NewRemoteWritePusher(RemoteWriteOptions{
			Endpoint:       endpoint,
			AuthToken:      pushCfg.AuthToken,
			ExternalLabels: labels,
		}), nil
	case exporterPushgateway:
		if labels["service"] == "" {
			return nil, errors.New("pushgateway job needs APP_SERVICE")
		}
		return NewPushgatewayPusher(endpoint, labels["service"], map[string]string{
			"environment": labels["environment"],
		}), nil
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", exporter)
	}
}

type RemoteWriteOptions struct {
	Endpoint  string
	AuthToken string
	// ExternalLabels are added to every series unless the series already
	// carries the label. Blank values are skipped.
	ExternalLabels map[string]string
	Client         *http.Client
}

// RemoteWritePusher sends the service's counters and gauges to a Prometheus
// remote_write endpoint.
type RemoteWritePusher struct {
	opts   RemoteWriteOptions
	client *http.Client
}

func NewRemoteWritePusher(opts RemoteWriteOptions) *RemoteWritePusher {
	opts.AuthToken = strings.TrimSpace(opts.AuthToken)
	client := opts.Client
	if client == nil {
		client = obstracing.WrapHTTPClient(&http.Client{Timeout: defaultPushTimeout})
	}
	return &RemoteWritePusher{opts: opts, client: client}
}

func (p *RemoteWritePusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	if p == nil || gatherer == nil {
		return nil
	}
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	series := p.series(families, time.Now().UnixMilli())
	if len(series) == 0 {
		return nil
	}
	body, err := proto.Marshal(protoadapt.MessageV2Of(&prompb.WriteRequest{Timeseries: series}))
	if err != nil {
		return fmt.Errorf("encode write request: %w", err)
	}
	return p.send(ctx, snappy.Encode(nil, body))
}

func (p *RemoteWritePusher) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if p.opts.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.opts.AuthToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("remote write returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
}

// series converts licensehub counters and gauges. Histograms and summaries
// stay on the scrape endpoint.
func (p *RemoteWritePusher) series(families []*dto.MetricFamily, timestampMs int64) []prompb.TimeSeries {
	var out []prompb.TimeSeries
	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), metricPrefix) {
			continue
		}
		for _, metric := range family.GetMetric() {
			value, ok := sampleValue(family.GetType(), metric)
			if !ok {
				continue
			}
			out = append(out, prompb.TimeSeries{
				Labels:  p.labels(family.GetName(), metric.GetLabel()),
				Samples: []prompb.Sample{{Value: value, Timestamp: timestampMs}},
			})
		}
	}
	return out
}

func (p *RemoteWritePusher) labels(name string, pairs []*dto.LabelPair) []prompb.Label {
	set := make(map[string]string, len(pairs)+len(p.opts.ExternalLabels)+1)
	for k, v := range p.opts.ExternalLabels {
		if v != "" {
			set[k] = v
		}
	}
	for _, pair := range pairs {
		set[pair.GetName()] = pair.GetValue()
	}
	set["__name__"] = name

	labels := make([]prompb.Label, 0, len(set))
	for _, k := range slices.Sorted(maps.Keys(set)) {
		labels = append(labels, prompb.Label{Name: k, Value: set[k]})
	}
	return labels
}

func sampleValue(kind dto.MetricType, metric *dto.Metric) (float64, bool) {
	switch {
	case metric == nil:
		return 0, false
	case kind == dto.MetricType_COUNTER && metric.GetCounter() != nil:
		return metric.GetCounter().GetValue(), true
	case kind == dto.MetricType_GAUGE && metric.GetGauge() != nil:
		return metric.GetGauge().GetValue(), true
	}
	return 0, false
}

// PushgatewayPusher replaces the job's group on a Prometheus Pushgateway.
type PushgatewayPusher struct {
	endpoint string
	job      string
	grouping map[string]string
}

func NewPushgatewayPusher(endpoint, job string, grouping map[string]string) *PushgatewayPusher {
	clean := make(map[string]string, len(grouping))
	for k, v := range grouping {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			clean[k] = v
		}
	}
	return &PushgatewayPusher{endpoint: endpoint, job: strings.TrimSpace(job), grouping: clean}
}

func (p *PushgatewayPusher) Push(ctx context.Context, gatherer prometheus.Gatherer) error {
	if p == nil || gatherer == nil {
		return nil
	}
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}
	pusher := push.New(p.endpoint, p.job).Gatherer(gatherer)
	for _, k := range slices.Sorted(maps.Keys(p.grouping)) {
		pusher = pusher.Grouping(k, p.grouping[k])
	}
	return pusher.PushContext(ctx)
}
