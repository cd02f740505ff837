package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/nftfolder/internal/domain"
)

func TestMetrics_Counts(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.Discovered()
	m.Discovered()
	m.LocatorFailure()
	m.Completed(domain.Outcome{Kind: domain.OutcomeSaved, Bytes: 100})
	m.Completed(domain.Outcome{Kind: domain.OutcomeSkipped})
	m.Completed(domain.Outcome{Kind: domain.OutcomeFailed, Err: errors.New("boom")})
	m.Page("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.discovered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.locatorFailures))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.bytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("saved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pages.WithLabelValues("ok")))
}

func TestMetrics_InFlight(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.FetchStarted()
	m.FetchStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inFlight))

	m.FetchFinished("http", domain.OutcomeSaved, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight))
}

func TestMustNewMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := MustNewMetrics(reg)
	second := MustNewMetrics(reg)

	first.Discovered()
	assert.Equal(t, 1.0, testutil.ToFloat64(second.discovered))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Discovered()
		m.LocatorFailure()
		m.Completed(domain.Outcome{Kind: domain.OutcomeSaved})
		m.FetchStarted()
		m.FetchFinished("http", domain.OutcomeSaved, time.Second)
		m.Page("error")
	})
}
