package core

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	. "github.com/stevegt/goadapt"
)

// ChartKind names the chart a metric is meant to be drawn with.
type ChartKind string

const (
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
)

// ErrMetricNotFound is returned by Catalog.Find for unknown names.
var ErrMetricNotFound = errors.New("metric not found")

// Point is one daily value of a metric.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Metric is a named metric with its synthetic data.
type Metric struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Chart       ChartKind `json:"chart"`
	// Data is ordered newest first.
	Data []Point `json:"data,omitempty"`
}

// Slice returns the points whose date falls within [from, to],
// newest first.  A zero from or to leaves that side open.
func (m *Metric) Slice(from, to time.Time) (points []Point) {
	for _, p := range m.Data {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		points = append(points, p)
	}
	return
}

// Catalog is the static, read-only list of known metrics.
type Catalog struct {
	metrics []*Metric
	byName  map[string]*Metric
}

// NewCatalog builds a catalog, rejecting duplicate names.
func NewCatalog(metrics []*Metric) (c *Catalog, err error) {
	c = &Catalog{byName: make(map[string]*Metric)}
	for _, m := range metrics {
		if _, ok := c.byName[m.Name]; ok {
			return nil, fmt.Errorf("duplicate metric name %q", m.Name)
		}
		c.byName[m.Name] = m
		c.metrics = append(c.metrics, m)
	}
	return
}

// Metrics returns the metrics in catalog order.
func (c *Catalog) Metrics() []*Metric {
	return append([]*Metric(nil), c.metrics...)
}

// Names returns the metric names in catalog order.
func (c *Catalog) Names() (names []string) {
	for _, m := range c.metrics {
		names = append(names, m.Name)
	}
	return
}

// Descriptions maps each metric name to its description.
func (c *Catalog) Descriptions() map[string]string {
	out := make(map[string]string, len(c.metrics))
	for _, m := range c.metrics {
		out[m.Name] = m.Description
	}
	return out
}

// Find returns the metric with exactly the given name.
func (c *Catalog) Find(name string) (m *Metric, err error) {
	m, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMetricNotFound, name)
	}
	return
}

// Match returns the catalog metrics whose names appear in names, in
// catalog order.  Matching is exact and case-sensitive; names with no
// metric are ignored.
func (c *Catalog) Match(names []string) (matched []*Metric) {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}
	for _, m := range c.metrics {
		if want[m.Name] {
			matched = append(matched, m)
		}
	}
	return
}

// Synthetic data parameters.
const (
	fakeDays   = 180
	fakeMin    = 10
	fakeMax    = 100
	fakeWindow = 7
)

// FakeData generates deterministic daily data ending at end.  Raw
// values are drawn uniformly from [fakeMin, fakeMax), then smoothed
// with a rolling mean over the newest-first series.  Points without a
// full window are dropped, so the newest fakeWindow-1 days are absent.
func FakeData(end time.Time, seed int64) (points []Point) {
	rnd := rand.New(rand.NewSource(seed))
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	raw := make([]Point, fakeDays)
	for i := 0; i < fakeDays; i++ {
		raw[i] = Point{
			Date:  end.AddDate(0, 0, i-fakeDays+1),
			Value: float64(fakeMin + rnd.Intn(fakeMax-fakeMin)),
		}
	}
	sort.Slice(raw, func(i, j int) bool { return raw[i].Date.After(raw[j].Date) })
	var sum float64
	for i, p := range raw {
		sum += p.Value
		if i >= fakeWindow {
			sum -= raw[i-fakeWindow].Value
		}
		if i < fakeWindow-1 {
			continue
		}
		points = append(points, Point{Date: p.Date, Value: sum / fakeWindow})
	}
	return
}

// metricsMetadata is the synthetic catalog content.
var metricsMetadata = []struct {
	name, description string
	chart             ChartKind
}{
	{"User Enrollment Rate", "Measures the number of new users enrolling in courses over time.", ChartLine},
	{"Course Completion Rate", "Shows the percentage of users completing their courses.", ChartBar},
	{"Average Session Duration", "Tracks the average time users spend on the platform per session.", ChartLine},
	{"Daily Active Users", "Counts unique users interacting with the platform daily.", ChartBar},
	{"Retention Rate", "Percentage of users who return to the platform after their first visit.", ChartLine},
	{"Net Promoter Score", "Measures user satisfaction and the likelihood of recommending the platform to others.", ChartBar},
	{"Revenue", "Total revenue generated over time.", ChartLine},
	{"Churn Rate", "Percentage of users who stop using the product over time.", ChartBar},
	{"Average Revenue per User", "Average revenue generated per user over time.", ChartBar},
	{"Daily Sessions", "Number of sessions held on the platform daily.", ChartBar},
	{"Conversion Rate", "Percentage of users who take a desired action (e.g., make a purchase) over time.", ChartLine},
	{"Active Subscriptions", "Number of active subscriptions over time.", ChartBar},
	{"Customer Lifetime Value", "Predicted revenue a user will generate over their entire time as a customer.", ChartLine},
	{"Bounce Rate", "Percentage of users who leave the platform without interacting.", ChartLine},
	{"Average Transaction Value", "Average value of transactions made on the platform over time.", ChartBar},
	{"Engagement Score", "Measure of how engaged users are with the platform.", ChartLine},
}

// DefaultCatalog returns the synthetic metric catalog with data ending
// at end.  Metric i uses seed i+1.
func DefaultCatalog(end time.Time) (c *Catalog) {
	var metrics []*Metric
	for i, md := range metricsMetadata {
		metrics = append(metrics, &Metric{
			Name:        md.name,
			Description: md.description,
			Chart:       md.chart,
			Data:        FakeData(end, int64(i+1)),
		})
	}
	c, err := NewCatalog(metrics)
	Ck(err)
	return
}
