package exposition

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// ContentType is the media type of documents produced by Write.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Kind is the metric type of a family.
type Kind int

const (
	Counter Kind = iota
	Gauge
)

func (k Kind) String() string {
	switch k {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	default:
		return "untyped"
	}
}

// Label is one name/value pair. Order within a Sample is preserved on output.
type Label struct {
	Name  string
	Value string
}

// Sample is a single labeled value within a Family.
type Sample struct {
	Labels []Label
	Value  float64
}

// Family is a named group of samples sharing help text and kind.
type Family struct {
	Name    string
	Help    string
	Kind    Kind
	Samples []Sample
}

// Add appends a sample with the given value and labels.
func (f *Family) Add(value float64, labels ...Label) {
	f.Samples = append(f.Samples, Sample{Labels: labels, Value: value})
}

// Write renders f as one HELP line, one TYPE line and one line per sample.
// A family without samples writes nothing.
func Write(w io.Writer, f Family) error {
	if len(f.Samples) == 0 {
		return nil
	}
	if _, err := expfmt.MetricFamilyToText(w, f.toProto()); err != nil {
		return fmt.Errorf("exposition: write %s: %w", f.Name, err)
	}
	return nil
}

// WriteAll writes each family in order and stops at the first error.
func WriteAll(w io.Writer, families []Family) error {
	for _, f := range families {
		if err := Write(w, f); err != nil {
			return err
		}
	}
	return nil
}

// toProto converts f into the client_model representation consumed by expfmt.
func (f Family) toProto() *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name:   strPtr(f.Name),
		Help:   strPtr(f.Help),
		Metric: make([]*dto.Metric, 0, len(f.Samples)),
	}
	typ := dto.MetricType_GAUGE
	if f.Kind == Counter {
		typ = dto.MetricType_COUNTER
	}
	mf.Type = &typ

	for _, s := range f.Samples {
		m := &dto.Metric{Label: make([]*dto.LabelPair, 0, len(s.Labels))}
		for _, l := range s.Labels {
			m.Label = append(m.Label, &dto.LabelPair{Name: strPtr(l.Name), Value: strPtr(l.Value)})
		}
		v := s.Value
		if f.Kind == Counter {
			m.Counter = &dto.Counter{Value: &v}
		} else {
			m.Gauge = &dto.Gauge{Value: &v}
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

func strPtr(s string) *string { return &s }
