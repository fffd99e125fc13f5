package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// findMetric returns the series of name whose labels include every pair in want.
func findMetric(mfs []*dto.MetricFamily, name string, want map[string]string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		matched := 0
		for _, pair := range metric.GetLabel() {
			if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
				matched++
			}
		}
		if matched == len(want) {
			return metric, nil
		}
	}
	return nil, fmt.Errorf("metric %q has no series %v", name, want)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := findMetric(mfs, name, map[string]string{label: value})
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}
