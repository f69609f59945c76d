// Package services holds the thin integrations with external consumer
// services: URL generators for UI handoff and the Maps distance client.
// Email and playback API work runs through the automation workflows.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const mapsBaseURL = "https://maps.googleapis.com/maps/api"

// TravelModes checked for every distance query, in presentation order.
var TravelModes = []string{"driving", "walking", "transit"}

// ModeResult is the distance/duration answer for one travel mode.
type ModeResult struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
}

// MapsClient calls the Distance Matrix API.
type MapsClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewMapsClient creates a Maps client, or an error when no API key is
// configured.
func NewMapsClient(apiKey string) (*MapsClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY not set")
	}
	return &MapsClient{
		apiKey:  apiKey,
		baseURL: mapsBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type distanceMatrixResponse struct {
	Rows []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Text string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Text string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
	Status string `json:"status"`
}

// Distance returns distance and travel time per mode. Modes the API
// cannot answer are simply absent from the result.
func (m *MapsClient) Distance(ctx context.Context, origin, destination string) (map[string]ModeResult, error) {
	results := make(map[string]ModeResult)

	for _, mode := range TravelModes {
		q := url.Values{
			"origins":      {origin},
			"destinations": {destination},
			"mode":         {mode},
			"key":          {m.apiKey},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			m.baseURL+"/distancematrix/json?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("build distance request: %w", err)
		}

		resp, err := m.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("distance matrix %s: %w", mode, err)
		}

		var decoded distanceMatrixResponse
		err = json.NewDecoder(resp.Body).Decode(&decoded)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode distance matrix %s: %w", mode, err)
		}

		if decoded.Status != "OK" || len(decoded.Rows) == 0 || len(decoded.Rows[0].Elements) == 0 {
			continue
		}
		el := decoded.Rows[0].Elements[0]
		if el.Status != "OK" {
			continue
		}
		results[mode] = ModeResult{Distance: el.Distance.Text, Duration: el.Duration.Text}
	}

	return results, nil
}

// FormatDistanceSummary renders a spoken answer from distance results.
func FormatDistanceSummary(results map[string]ModeResult, destination string) string {
	if len(results) == 0 {
		return fmt.Sprintf("I couldn't find a route to %s.", destination)
	}

	var parts []string
	for _, mode := range TravelModes {
		r, ok := results[mode]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s takes %s covering %s", mode, r.Duration, r.Distance))
	}
	return fmt.Sprintf("To %s: %s.", destination, strings.Join(parts, ", "))
}

// DirectionsURL builds a Google Maps directions link for UI handoff.
func DirectionsURL(origin, destination string) string {
	q := url.Values{
		"api":         {"1"},
		"origin":      {origin},
		"destination": {destination},
	}
	return "https://www.google.com/maps/dir/?" + q.Encode()
}
