package telemetry_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/temirov/simmigrate/internal/events"
	"github.com/temirov/simmigrate/internal/telemetry"
)

func TestInitTracerDisabledIsNoop(testInstance *testing.T) {
	shutdown, initError := telemetry.InitTracer(false, nil, zap.NewNop())
	require.NoError(testInstance, initError)
	require.NoError(testInstance, shutdown(context.Background()))
}

func TestInitTracerExportsSpans(testInstance *testing.T) {
	previousProvider := otel.GetTracerProvider()
	testInstance.Cleanup(func() { otel.SetTracerProvider(previousProvider) })

	var exported bytes.Buffer
	shutdown, initError := telemetry.InitTracer(true, &exported, zap.NewNop())
	require.NoError(testInstance, initError)

	_, span := otel.Tracer("simmigrate/test").Start(context.Background(), "resolve_sims")
	span.End()
	require.NoError(testInstance, shutdown(context.Background()))

	require.Contains(testInstance, exported.String(), "resolve_sims")
	require.Contains(testInstance, exported.String(), telemetry.ServiceName)
}

func TestMetricsObserverWritesTextfile(testInstance *testing.T) {
	metricsObserver := telemetry.NewMetricsObserver()
	for _, event := range []events.Event{
		{Kind: events.KindAuthenticationSucceeded, Identity: events.IdentityMaster},
		{Kind: events.KindAuthenticationFailed, Identity: events.IdentityEnterprise},
		{Kind: events.KindItemResolved, Stage: events.StageResolveSims},
		{Kind: events.KindItemResolved, Stage: events.StageResolveSims},
		{Kind: events.KindItemFailed, Stage: events.StageResolveSims},
		{Kind: events.KindStageCompleted, Stage: events.StageResolveSims, Counts: events.StageCounts{Input: 3, Succeeded: 2, Errored: 1}},
		{Kind: events.KindRunSummary, Summary: &events.Summary{FinalState: "Stalled"}},
	} {
		metricsObserver.Observe(event)
	}

	metricsPath := filepath.Join(testInstance.TempDir(), "simmigrate.prom")
	require.NoError(testInstance, metricsObserver.WriteTextfile(metricsPath))

	contents, readError := os.ReadFile(metricsPath)
	require.NoError(testInstance, readError)
	text := string(contents)

	require.Contains(testInstance, text, `simmigrate_items_total{outcome="resolved",stage="resolve_sims"} 2`)
	require.Contains(testInstance, text, `simmigrate_items_total{outcome="failed",stage="resolve_sims"} 1`)
	require.Contains(testInstance, text, `simmigrate_authentication_attempts_total{identity="enterprise",result="failed"} 1`)
	require.Contains(testInstance, text, `simmigrate_stage_input_items{stage="resolve_sims"} 3`)
	require.Contains(testInstance, text, `simmigrate_runs_total{dry_run="false",final_state="Stalled"} 1`)
}

func TestMetricsObserverRequiresPath(testInstance *testing.T) {
	require.ErrorIs(testInstance, telemetry.NewMetricsObserver().WriteTextfile(" "), telemetry.ErrMetricsPathMissing)
}
