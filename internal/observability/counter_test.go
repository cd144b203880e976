package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"apigate/internal/ratelimit"
)

// outageStore always fails, standing in for an unreachable backend.
type outageStore struct{}

func (outageStore) IncrementAndCheck(context.Context, string, int, time.Duration) (ratelimit.Result, error) {
	return ratelimit.Result{}, fmt.Errorf("store unavailable")
}
func (outageStore) Close() error { return nil }

// setupTestMeter wires the global meter provider to a private Prometheus
// registry so the test can inspect what the exporter publishes.
func setupTestMeter(t *testing.T) *promclient.Registry {
	t.Helper()

	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	require.NoError(t, err)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })
	return registry
}

func findMetric(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestInstrumentedCounterStore_RecordsDenials(t *testing.T) {
	registry := setupTestMeter(t)

	inner := ratelimit.NewMemoryStore(time.Minute)
	defer inner.Close()

	store, err := NewInstrumentedCounterStore(inner)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := store.IncrementAndCheck(ctx, "rl:ip:10.0.0.1:public:auth:POST", 2, time.Minute)
		require.NoError(t, err)
	}

	families, err := registry.Gather()
	require.NoError(t, err)

	denied := findMetric(families, "ratelimit_requests_denied_total")
	require.NotNil(t, denied, "denied counter must be exported")
	require.Len(t, denied.GetMetric(), 1)
	assert.Equal(t, float64(1), denied.GetMetric()[0].GetCounter().GetValue())

	duration := findMetric(families, "ratelimit_check_duration_seconds")
	require.NotNil(t, duration, "latency histogram must be exported")
	assert.Equal(t, uint64(3), duration.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestInstrumentedCounterStore_RecordsStoreErrors(t *testing.T) {
	registry := setupTestMeter(t)

	store, err := NewInstrumentedCounterStore(outageStore{})
	require.NoError(t, err)

	_, err = store.IncrementAndCheck(context.Background(), "rl:ip:10.0.0.1:public:general:GET", 10, time.Minute)
	assert.Error(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)

	errs := findMetric(families, "ratelimit_store_errors_total")
	require.NotNil(t, errs)
	assert.Equal(t, float64(1), errs.GetMetric()[0].GetCounter().GetValue())
}

func TestInstrumentedCounterStore_KeysStayOutOfLabels(t *testing.T) {
	registry := setupTestMeter(t)

	inner := ratelimit.NewMemoryStore(time.Minute)
	defer inner.Close()

	store, err := NewInstrumentedCounterStore(inner)
	require.NoError(t, err)

	_, err = store.IncrementAndCheck(context.Background(), "rl:user:u-42:authenticated:search:GET", 30, time.Minute)
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				assert.NotContains(t, label.GetValue(), "u-42", "identity must not leak into metric labels")
			}
		}
	}
}
