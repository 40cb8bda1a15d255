package db

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	collector := NewPoolStatsCollector(nil, "council")

	ch := make(chan *prometheus.Desc, 10)
	collector.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}
	require.Len(t, names, 3)
	assert.Contains(t, names[0], "council_db_pool_total_conns")
	assert.Contains(t, names[1], "council_db_pool_acquired_conns")
	assert.Contains(t, names[2], "council_db_pool_max_conns")
}

func TestPoolStatsCollector_CollectNilPool(t *testing.T) {
	collector := NewPoolStatsCollector(nil, "council")

	ch := make(chan prometheus.Metric, 10)
	collector.Collect(ch)
	close(ch)
	assert.Empty(t, ch)
}

func TestRegisterPoolStats_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := RegisterPoolStats(reg, nil, "council")
	require.NoError(t, err)
	_, err = RegisterPoolStats(reg, nil, "council")
	assert.NoError(t, err)
}
