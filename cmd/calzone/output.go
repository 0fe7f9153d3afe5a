package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chazu/calzone/pkg/geometry"
	"github.com/prometheus/client_golang/prometheus"
)

// description is the JSON form of a volume summary.
type description struct {
	Path      string              `json:"path"`
	Material  string              `json:"material"`
	Solid     string              `json:"solid"`
	Mother    string              `json:"mother,omitempty"`
	Daughters []geometry.Daughter `json:"daughters"`
	Roles     []string            `json:"roles,omitempty"`
	Box       [6]float64          `json:"box"`
	Surface   float64             `json:"surface_cm2"`
	Volume    float64             `json:"volume_cm3"`
}

func newDescription(v *geometry.Volume) (*description, error) {
	info := v.Describe()
	box, err := v.ComputeBox("")
	if err != nil {
		return nil, err
	}
	return &description{
		Path:      info.Path,
		Material:  info.Material,
		Solid:     info.Solid,
		Mother:    info.Mother,
		Daughters: info.Daughters,
		Roles:     info.Roles.Strings(),
		Box:       box,
		Surface:   v.ComputeSurface(),
		Volume:    v.ComputeVolume(false),
	}, nil
}

func outputJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// writeMetrics prints the calzone collectors of the default registry, one
// sample per line.
func writeMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "calzone_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetGauge().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines,
					fmt.Sprintf("%s_count %d", name, h.GetSampleCount()),
					fmt.Sprintf("%s_sum %g", name, h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
