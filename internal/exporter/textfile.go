// Package exporter renders metric points in the Prometheus text format for
// the node exporter textfile collector.
package exporter

import (
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricPoint is one gauge sample.
type MetricPoint struct {
	Name   string
	Help   string
	Labels map[string]string
	Value  float64
}

// WriteTextfile writes points and any extra collectors to path through a
// private registry. The file is replaced atomically.
func WriteTextfile(path string, points []MetricPoint, collectors ...prometheus.Collector) error {
	registry, err := NewRegistry(points, collectors...)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// NewRegistry registers points and collectors on a fresh registry.
func NewRegistry(points []MetricPoint, collectors ...prometheus.Collector) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	if len(points) > 0 {
		if err := registry.Register(&pointCollector{points: points}); err != nil {
			return nil, fmt.Errorf("register metric points: %w", err)
		}
	}
	for _, collector := range collectors {
		if collector == nil {
			continue
		}
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return registry, nil
}

// pointCollector is unchecked: it describes nothing up front, so the
// registry only validates its samples at gather time.
type pointCollector struct {
	points []MetricPoint
}

func (c *pointCollector) Describe(_ chan<- *prometheus.Desc) {}

func (c *pointCollector) Collect(ch chan<- prometheus.Metric) {
	for _, point := range c.points {
		if point.Name == "" {
			continue
		}

		labelKeys := make([]string, 0, len(point.Labels))
		for key := range point.Labels {
			labelKeys = append(labelKeys, key)
		}
		sort.Strings(labelKeys)

		labelValues := make([]string, 0, len(labelKeys))
		for _, key := range labelKeys {
			labelValues = append(labelValues, point.Labels[key])
		}

		help := point.Help
		if help == "" {
			help = point.Name
		}
		desc := prometheus.NewDesc(point.Name, help, labelKeys, nil)
		metric, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, point.Value, labelValues...)
		if err != nil {
			continue
		}
		ch <- metric
	}
}
