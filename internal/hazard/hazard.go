// Package hazard reads active weather alerts (NWS) and disaster declarations
// (OpenFEMA) for a single state and formats them as text digests.
package hazard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/civicbot/internal/config"
	"github.com/nadzzz/civicbot/internal/fault"
)

// Geometry is the GeoJSON geometry attached to an alert, if any.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
}

// Alert is one active NWS alert.
type Alert struct {
	Event     string    `json:"event"`
	Headline  string    `json:"headline"`
	Effective string    `json:"effective"`
	Expires   string    `json:"expires"`
	Geometry  *Geometry `json:"geometry,omitempty"`
}

// Disaster is one FEMA disaster declaration summary.
type Disaster struct {
	IncidentType    string `json:"incidentType"`
	DeclarationDate string `json:"declarationDate"`
	DesignatedArea  string `json:"designatedArea"`
}

// Snapshot is the result of one poll of both feeds.
type Snapshot struct {
	Alerts    []Alert    `json:"alerts"`
	Disasters []Disaster `json:"disasters"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// Empty reports whether neither feed returned records.
func (s Snapshot) Empty() bool {
	return len(s.Alerts) == 0 && len(s.Disasters) == 0
}

// Fetcher is anything that can produce a Snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// Source reads the NWS alerts feed and the OpenFEMA declarations feed.
type Source struct {
	alertsURL    string
	disastersURL string
	region       string
	userAgent    string
	timeout      time.Duration
	client       *http.Client
}

// NewSource creates a hazard source from config.
func NewSource(cfg config.HazardConfig) *Source {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Source{
		alertsURL:    cfg.AlertsURL,
		disastersURL: cfg.DisastersURL,
		region:       strings.ToUpper(cfg.Region),
		userAgent:    cfg.UserAgent,
		timeout:      timeout,
		client:       &http.Client{},
	}
}

// Region returns the two-letter state code the source is scoped to.
func (s *Source) Region() string { return s.region }

// Fetch reads both feeds concurrently, each bounded by the configured
// timeout. On any failure the returned snapshot is empty and the error is a
// *fault.Error of kind fault.KindDataFetch, so "no records" (nil error) is
// always distinguishable from "could not fetch".
func (s *Source) Fetch(ctx context.Context) (Snapshot, error) {
	var (
		alerts    []Alert
		disasters []Disaster
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		alerts, err = s.fetchAlerts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		disasters, err = s.fetchDisasters(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fault.New(fault.KindDataFetch, err)
	}

	slog.Debug("hazard snapshot fetched", "region", s.region, "alerts", len(alerts), "disasters", len(disasters))
	return Snapshot{Alerts: alerts, Disasters: disasters, FetchedAt: time.Now().UTC()}, nil
}

func (s *Source) fetchAlerts(ctx context.Context) ([]Alert, error) {
	q := make(url.Values)
	q.Set("area", s.region)

	var body struct {
		Features []struct {
			Properties struct {
				Event     string `json:"event"`
				Headline  string `json:"headline"`
				Effective string `json:"effective"`
				Expires   string `json:"expires"`
			} `json:"properties"`
			Geometry *Geometry `json:"geometry"`
		} `json:"features"`
	}
	if err := s.getJSON(ctx, s.alertsURL+"?"+q.Encode(), "application/geo+json", &body); err != nil {
		return nil, fmt.Errorf("nws alerts: %w", err)
	}

	alerts := make([]Alert, 0, len(body.Features))
	for _, f := range body.Features {
		alerts = append(alerts, Alert{
			Event:     f.Properties.Event,
			Headline:  f.Properties.Headline,
			Effective: f.Properties.Effective,
			Expires:   f.Properties.Expires,
			Geometry:  f.Geometry,
		})
	}
	return alerts, nil
}

func (s *Source) fetchDisasters(ctx context.Context) ([]Disaster, error) {
	// OData parameters start with '$', which url.Values would escape.
	filter := url.PathEscape(fmt.Sprintf("state eq '%s'", s.region))

	var body struct {
		Summaries []Disaster `json:"DisasterDeclarationsSummaries"`
	}
	if err := s.getJSON(ctx, s.disastersURL+"?$filter="+filter, "application/json", &body); err != nil {
		return nil, fmt.Errorf("fema declarations: %w", err)
	}
	if body.Summaries == nil {
		body.Summaries = []Disaster{}
	}
	return body.Summaries, nil
}

func (s *Source) getJSON(ctx context.Context, rawURL, accept string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if s.userAgent != "" {
		// api.weather.gov rejects requests without a User-Agent.
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
