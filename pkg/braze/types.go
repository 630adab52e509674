package braze

import (
	gojson "github.com/goccy/go-json"

	jsonpool "github.com/ajitpratap0/brazesync/pkg/json"
)

// Item is a resource handle returned by a Braze list endpoint.
type Item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Details carries the subset of a details response the activity filter
// inspects. Recency fields are ISO 8601 strings; empty means the field
// was absent or null in the response.
type Details struct {
	Draft     bool   `json:"draft"`
	LastEntry string `json:"last_entry"`
	LastSent  string `json:"last_sent"`
	EndAt     string `json:"end_at"`
}

type campaignListResponse struct {
	Campaigns []Item `json:"campaigns"`
}

type canvasListResponse struct {
	Canvases []Item `json:"canvases"`
}

type eventListResponse struct {
	Events []string `json:"events"`
}

type feedListResponse struct {
	Cards []Item `json:"cards"`
}

type segmentListResponse struct {
	Segments []Item `json:"segments"`
}

// isScalar reports whether a decoded JSON value is a plain scalar.
// Nulls, objects, and arrays all fail: containers have their own
// flattening rules and nulls carry nothing worth copying.
func isScalar(v interface{}) bool {
	switch v.(type) {
	case nil, map[string]interface{}, []interface{}:
		return false
	default:
		return true
	}
}

// MessageStats is one channel entry in a campaign or canvas-step
// messages block. The variation name is lifted out for namespacing; the
// remaining scalar counters stay in Stats under their response keys.
type MessageStats struct {
	VariationName string
	Stats         map[string]interface{}
}

// UnmarshalJSON splits the variation name from the counter fields.
func (m *MessageStats) UnmarshalJSON(data []byte) error {
	var raw map[string]gojson.RawMessage
	if err := jsonpool.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Stats = make(map[string]interface{}, len(raw))
	for key, val := range raw {
		if key == "variation_name" {
			if err := jsonpool.Unmarshal(val, &m.VariationName); err != nil {
				return err
			}
			continue
		}
		var v interface{}
		if err := jsonpool.Unmarshal(val, &v); err != nil {
			return err
		}
		if isScalar(v) {
			m.Stats[key] = v
		}
	}
	return nil
}

// CampaignDataPoint is one time bucket of a campaign analytics series.
// The messages container is decoded into typed per-channel stats; every
// other scalar field at the top level lands in Stats as-is.
type CampaignDataPoint struct {
	Time     string
	Messages map[string][]MessageStats
	Stats    map[string]interface{}
}

// UnmarshalJSON separates the time bucket and the messages container
// from the free-form scalar counters.
func (p *CampaignDataPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]gojson.RawMessage
	if err := jsonpool.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Stats = make(map[string]interface{}, len(raw))
	for key, val := range raw {
		switch key {
		case "time":
			if err := jsonpool.Unmarshal(val, &p.Time); err != nil {
				return err
			}
		case "messages":
			if err := jsonpool.Unmarshal(val, &p.Messages); err != nil {
				return err
			}
		default:
			var v interface{}
			if err := jsonpool.Unmarshal(val, &v); err != nil {
				return err
			}
			if isScalar(v) {
				p.Stats[key] = v
			}
		}
	}
	return nil
}

type campaignSeriesResponse struct {
	Data []CampaignDataPoint `json:"data"`
}

// CanvasVariantStats is one variant entry of a canvas series point,
// keyed in the response by variant API id with the display name inside.
type CanvasVariantStats struct {
	Name  string
	Stats map[string]interface{}
}

// UnmarshalJSON lifts the variant name and keeps the scalar counters.
func (v *CanvasVariantStats) UnmarshalJSON(data []byte) error {
	var raw map[string]gojson.RawMessage
	if err := jsonpool.Unmarshal(data, &raw); err != nil {
		return err
	}

	v.Stats = make(map[string]interface{}, len(raw))
	for key, val := range raw {
		if key == "name" {
			if err := jsonpool.Unmarshal(val, &v.Name); err != nil {
				return err
			}
			continue
		}
		var dec interface{}
		if err := jsonpool.Unmarshal(val, &dec); err != nil {
			return err
		}
		if isScalar(dec) {
			v.Stats[key] = dec
		}
	}
	return nil
}

// CanvasStepStats is one step entry of a canvas series point. Steps
// carry their own scalar counters plus a per-channel messages block.
type CanvasStepStats struct {
	Name     string
	Messages map[string][]MessageStats
	Stats    map[string]interface{}
}

// UnmarshalJSON lifts the step name and messages container, keeping the
// scalar counters.
func (s *CanvasStepStats) UnmarshalJSON(data []byte) error {
	var raw map[string]gojson.RawMessage
	if err := jsonpool.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Stats = make(map[string]interface{}, len(raw))
	for key, val := range raw {
		switch key {
		case "name":
			if err := jsonpool.Unmarshal(val, &s.Name); err != nil {
				return err
			}
		case "messages":
			if err := jsonpool.Unmarshal(val, &s.Messages); err != nil {
				return err
			}
		default:
			var dec interface{}
			if err := jsonpool.Unmarshal(val, &dec); err != nil {
				return err
			}
			if isScalar(dec) {
				s.Stats[key] = dec
			}
		}
	}
	return nil
}

// CanvasDataPoint is one time bucket of a canvas analytics series with
// its three nested stat containers decoded into typed form.
type CanvasDataPoint struct {
	Time         string
	TotalStats   map[string]interface{}
	VariantStats map[string]CanvasVariantStats
	StepStats    map[string]CanvasStepStats
	Stats        map[string]interface{}
}

// UnmarshalJSON routes the known containers to their types and keeps
// any remaining top-level scalars.
func (p *CanvasDataPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]gojson.RawMessage
	if err := jsonpool.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Stats = make(map[string]interface{}, len(raw))
	for key, val := range raw {
		switch key {
		case "time":
			if err := jsonpool.Unmarshal(val, &p.Time); err != nil {
				return err
			}
		case "total_stats":
			if err := jsonpool.Unmarshal(val, &p.TotalStats); err != nil {
				return err
			}
		case "variant_stats":
			if err := jsonpool.Unmarshal(val, &p.VariantStats); err != nil {
				return err
			}
		case "step_stats":
			if err := jsonpool.Unmarshal(val, &p.StepStats); err != nil {
				return err
			}
		default:
			var dec interface{}
			if err := jsonpool.Unmarshal(val, &dec); err != nil {
				return err
			}
			if isScalar(dec) {
				p.Stats[key] = dec
			}
		}
	}
	return nil
}

// CanvasSeriesData is the data envelope of a canvas series response.
type CanvasSeriesData struct {
	Name  string            `json:"name"`
	Stats []CanvasDataPoint `json:"stats"`
}

type canvasSeriesResponse struct {
	Data CanvasSeriesData `json:"data"`
}

// EventDataPoint is one bucket of a custom event occurrence series.
type EventDataPoint struct {
	Time  string  `json:"time"`
	Count float64 `json:"count"`
}

type eventSeriesResponse struct {
	Events []EventDataPoint `json:"events"`
}

// KPIDataPoint is one bucket of a KPI series. Exactly one counter field
// is populated depending on which KPI endpoint produced it.
type KPIDataPoint struct {
	Time       string   `json:"time"`
	NewUsers   *float64 `json:"new_users,omitempty"`
	DAU        *float64 `json:"dau,omitempty"`
	MAU        *float64 `json:"mau,omitempty"`
	Uninstalls *float64 `json:"uninstalls,omitempty"`
}

// FeedDataPoint is one bucket of a news feed card engagement series.
type FeedDataPoint struct {
	Time              string  `json:"time"`
	Clicks            float64 `json:"clicks"`
	Impressions       float64 `json:"impressions"`
	UniqueClicks      float64 `json:"unique_clicks"`
	UniqueImpressions float64 `json:"unique_impressions"`
}

// SegmentDataPoint is one bucket of a segment size series.
type SegmentDataPoint struct {
	Time string  `json:"time"`
	Size float64 `json:"size"`
}

// SessionDataPoint is one bucket of the app sessions series.
type SessionDataPoint struct {
	Time     string  `json:"time"`
	Sessions float64 `json:"sessions"`
}

type kpiSeriesResponse struct {
	Data []KPIDataPoint `json:"data"`
}

type feedSeriesResponse struct {
	Data []FeedDataPoint `json:"data"`
}

type segmentSeriesResponse struct {
	Data []SegmentDataPoint `json:"data"`
}

type sessionSeriesResponse struct {
	Data []SessionDataPoint `json:"data"`
}

// OutputEvent is one flattened analytics event produced by the import
// transformers, ready for downstream capture.
type OutputEvent struct {
	Event      string                 `json:"event"`
	Properties map[string]interface{} `json:"properties"`
	Timestamp  string                 `json:"timestamp"`
}

// InboundEvent is an analytics event entering the export path.
type InboundEvent struct {
	Event      string                 `json:"event"`
	DistinctID string                 `json:"distinct_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Set        map[string]interface{} `json:"$set,omitempty"`
	Timestamp  string                 `json:"timestamp,omitempty"`
}

// TrackAttributes is one attributes entry of a /users/track payload:
// the filtered profile fields plus the routing external_id.
type TrackAttributes map[string]interface{}

// TrackEvent is one events entry of a /users/track payload.
type TrackEvent struct {
	Name       string                 `json:"name"`
	Time       string                 `json:"time"`
	ExternalID string                 `json:"external_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// TrackRequest is a /users/track body. Arrays stay nil when they have
// no entries so they marshal away entirely.
type TrackRequest struct {
	Attributes []TrackAttributes `json:"attributes,omitempty"`
	Events     []TrackEvent      `json:"events,omitempty"`
}

// Size returns how many entries the request carries across both arrays.
func (r TrackRequest) Size() int {
	return len(r.Attributes) + len(r.Events)
}

type trackResponse struct {
	Message string        `json:"message"`
	Errors  []interface{} `json:"errors"`
}
