package braze

import (
	"time"

	stringpool "github.com/ajitpratap0/brazesync/pkg/strings"
)

// ExportConfig controls which inbound events and profile fields are
// forwarded to /users/track.
type ExportConfig struct {
	eventNames     map[string]struct{}
	propertyNames  map[string]struct{}
	importAllAttrs bool
}

// NewExportConfig parses the comma-separated allow lists. Entries are
// trimmed and empties dropped.
func NewExportConfig(eventsToExport, userPropertiesToExport string, importUserAttributesInAllEvents bool) ExportConfig {
	cfg := ExportConfig{
		eventNames:     make(map[string]struct{}),
		propertyNames:  make(map[string]struct{}),
		importAllAttrs: importUserAttributesInAllEvents,
	}
	for _, name := range stringpool.SplitAndTrim(eventsToExport, ",") {
		cfg.eventNames[name] = struct{}{}
	}
	for _, name := range stringpool.SplitAndTrim(userPropertiesToExport, ",") {
		cfg.propertyNames[name] = struct{}{}
	}
	return cfg
}

// ExportsEvent reports whether the event name is on the allow list.
func (c ExportConfig) ExportsEvent(name string) bool {
	_, ok := c.eventNames[name]
	return ok
}

// ExportsProperty reports whether the profile field is on the allow list.
func (c ExportConfig) ExportsProperty(name string) bool {
	_, ok := c.propertyNames[name]
	return ok
}

// ShapedEvent is one inbound event's contribution to a track payload:
// at most one attributes entry and at most one events entry.
type ShapedEvent struct {
	Attributes []TrackAttributes
	Events     []TrackEvent
}

// Empty reports whether the event contributed nothing.
func (s ShapedEvent) Empty() bool {
	return len(s.Attributes) == 0 && len(s.Events) == 0
}

// ShapeEvent applies the export gates to one inbound event. The two
// gates are independent: an event can contribute profile attributes, a
// track event, both, or nothing. The input is never mutated.
//
// The attribute gate passes when the event name is allowed (or every
// event carries attributes) and at least one $set field survives the
// property allow list. The event gate passes when the event name alone
// is allowed; its payload drops the $set block and falls back to the
// last UTC midnight when the event has no timestamp of its own.
func ShapeEvent(event InboundEvent, cfg ExportConfig, lastMidnight time.Time) ShapedEvent {
	var shaped ShapedEvent

	candidate := event.Set
	if candidate == nil {
		if nested, ok := event.Properties["$set"].(map[string]interface{}); ok {
			candidate = nested
		}
	}

	filtered := make(map[string]interface{}, len(candidate))
	for key, value := range candidate {
		if cfg.ExportsProperty(key) {
			filtered[key] = value
		}
	}

	if (cfg.importAllAttrs || cfg.ExportsEvent(event.Event)) && len(filtered) > 0 {
		attrs := make(TrackAttributes, len(filtered)+1)
		for key, value := range filtered {
			attrs[key] = value
		}
		attrs["external_id"] = event.DistinctID
		shaped.Attributes = append(shaped.Attributes, attrs)
	}

	if cfg.ExportsEvent(event.Event) {
		ts := event.Timestamp
		if ts == "" {
			ts = ISODateString(lastMidnight)
		}
		props := make(map[string]interface{}, len(event.Properties))
		for key, value := range event.Properties {
			if key == "$set" {
				continue
			}
			props[key] = value
		}
		shaped.Events = append(shaped.Events, TrackEvent{
			Name:       event.Event,
			Time:       ts,
			ExternalID: event.DistinctID,
			Properties: props,
		})
	}

	return shaped
}
