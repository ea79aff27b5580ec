package stats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultScrapeTimeout = 10 * time.Second

// Metric family names exported by metage-server.
const (
	familyEstimates = "metage_estimates_total"
	familyActivity  = "metage_estimate_activity_total"
	familyWSClients = "metage_ws_clients"
	familyReloads   = "metage_config_reloads_total"
)

// Summary is the estimator activity reported by one /metrics scrape.
// Counter fields hold raw totals since server start.
type Summary struct {
	Total       float64
	ByOutcome   map[string]float64
	ByTransport map[string]float64
	ByActivity  map[string]float64
	WSClients   float64
	Reloads     map[string]float64
}

// NewHTTPClient returns the client used by Fetch when none is given.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultScrapeTimeout}
}

// Fetch scrapes url and summarises the estimator counters.
func Fetch(ctx context.Context, client *http.Client, url string) (*Summary, error) {
	if client == nil {
		client = NewHTTPClient()
	}
	mfs, err := fetchMetrics(ctx, client, url)
	if err != nil {
		return nil, fmt.Errorf("stats: scrape %s: %w", url, err)
	}
	return Summarize(mfs), nil
}

// Summarize extracts the metage families from a parsed scrape. Families that
// are absent (no estimate served yet) leave their fields at zero.
func Summarize(mfs map[string]*dto.MetricFamily) *Summary {
	s := &Summary{
		ByOutcome:   byLabel(mfs[familyEstimates], "outcome"),
		ByTransport: byLabel(mfs[familyEstimates], "transport"),
		ByActivity:  byLabel(mfs[familyActivity], "activity"),
		WSClients:   sumFamily(mfs[familyWSClients]),
		Reloads:     byLabel(mfs[familyReloads], "result"),
	}
	s.Total = sumFamily(mfs[familyEstimates])
	return s
}

// Write prints s as aligned plain text with keys in sorted order.
func Write(w io.Writer, s *Summary) error {
	if _, err := fmt.Fprintf(w, "estimates total: %g\n", s.Total); err != nil {
		return err
	}
	sections := []struct {
		title string
		vals  map[string]float64
	}{
		{"by outcome", s.ByOutcome},
		{"by transport", s.ByTransport},
		{"by activity", s.ByActivity},
		{"config reloads", s.Reloads},
	}
	for _, sec := range sections {
		if len(sec.vals) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s:\n", sec.title); err != nil {
			return err
		}
		for _, k := range sortedKeys(sec.vals) {
			if _, err := fmt.Fprintf(w, "  %-14s %g\n", k, sec.vals[k]); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "live clients: %g\n", s.WSClients)
	return err
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// byLabel sums the family's samples grouped by the value of label.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += value(m)
				break
			}
		}
	}
	return out
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
