package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

//nolint:gochecknoglobals
var (
	promMutex sync.Mutex

	// +checklocks:promMutex
	promCounters = map[string]*prometheus.CounterVec{}
	// +checklocks:promMutex
	promGauges = map[string]*prometheus.GaugeVec{}
)

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func getPrometheusCounter(name, help string, labels map[string]string) prometheus.Counter {
	promMutex.Lock()
	defer promMutex.Unlock()

	fullName := prometheusPrefix + name + "_total"

	cv := promCounters[fullName]
	if cv == nil {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fullName,
			Help: help,
		}, labelKeys(labels))

		if err := prometheus.Register(cv); err != nil {
			return nil
		}

		promCounters[fullName] = cv
	}

	c, err := cv.GetMetricWith(labels)
	if err != nil {
		return nil
	}

	return c
}

func getPrometheusGauge(name, help string, labels map[string]string) prometheus.Gauge {
	promMutex.Lock()
	defer promMutex.Unlock()

	fullName := prometheusPrefix + name

	gv := promGauges[fullName]
	if gv == nil {
		gv = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: fullName,
			Help: help,
		}, labelKeys(labels))

		if err := prometheus.Register(gv); err != nil {
			return nil
		}

		promGauges[fullName] = gv
	}

	g, err := gv.GetMetricWith(labels)
	if err != nil {
		return nil
	}

	return g
}
