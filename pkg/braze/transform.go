package braze

// The transformers turn raw analytics series into flat capture events,
// one event per time bucket. Property keys namespace nested stats with
// colons; duplicate keys after flattening are not detected, the last
// write wins.

// copyScalars writes every scalar stat under "<prefix><field>".
func copyScalars(props map[string]interface{}, prefix string, stats map[string]interface{}) {
	for field, value := range stats {
		if isScalar(value) {
			props[prefix+field] = value
		}
	}
}

// flattenMessages writes one property per channel stat under
// "<prefix><channel>[:<variation>]:<field>".
func flattenMessages(props map[string]interface{}, prefix string, messages map[string][]MessageStats) {
	for channel, entries := range messages {
		for _, entry := range entries {
			base := prefix + channel
			if entry.VariationName != "" {
				base += ":" + entry.VariationName
			}
			for field, value := range entry.Stats {
				props[base+":"+field] = value
			}
		}
	}
}

// TransformCampaignSeries flattens a campaign series. Top-level scalars
// keep their own keys; per-channel message stats are namespaced by
// channel and variation.
func TransformCampaignSeries(name string, series []CampaignDataPoint) []OutputEvent {
	events := make([]OutputEvent, 0, len(series))
	for _, point := range series {
		props := make(map[string]interface{}, len(point.Stats))
		copyScalars(props, "", point.Stats)
		flattenMessages(props, "", point.Messages)
		events = append(events, OutputEvent{
			Event:      "Braze campaign: " + name,
			Properties: props,
			Timestamp:  point.Time,
		})
	}
	return events
}

// TransformCanvasSeries flattens a canvas series. Total, variant, and
// step stats each get their own namespace; variant and step display
// names become key segments and never appear as values.
func TransformCanvasSeries(name string, data *CanvasSeriesData) []OutputEvent {
	if data == nil {
		return nil
	}
	events := make([]OutputEvent, 0, len(data.Stats))
	for _, point := range data.Stats {
		props := make(map[string]interface{})
		copyScalars(props, "", point.Stats)
		copyScalars(props, "total_stats:", point.TotalStats)
		for _, variant := range point.VariantStats {
			copyScalars(props, "variant_stats:"+variant.Name+":", variant.Stats)
		}
		for _, step := range point.StepStats {
			stepPrefix := "step_stats:" + step.Name + ":"
			copyScalars(props, stepPrefix, step.Stats)
			flattenMessages(props, stepPrefix, step.Messages)
		}
		events = append(events, OutputEvent{
			Event:      "Braze canvas: " + name,
			Properties: props,
			Timestamp:  point.Time,
		})
	}
	return events
}

// TransformEventSeries maps custom event occurrence buckets.
func TransformEventSeries(name string, series []EventDataPoint) []OutputEvent {
	events := make([]OutputEvent, 0, len(series))
	for _, point := range series {
		events = append(events, OutputEvent{
			Event:      "Braze custom event: " + name,
			Properties: map[string]interface{}{"count": point.Count},
			Timestamp:  point.Time,
		})
	}
	return events
}

// kpiEventNames maps each KPI endpoint to its emitted event name.
var kpiEventNames = map[KPIKind]string{
	KPINewUsers:   "Braze KPI: Daily New Users",
	KPIDAU:        "Braze KPI: Daily Active Users",
	KPIMAU:        "Braze KPI: Monthly Active Users",
	KPIUninstalls: "Braze KPI: Daily Uninstalls",
}

// TransformKPISeries maps account-level KPI buckets. The counter is
// copied under the field name of the KPI that produced it.
func TransformKPISeries(kind KPIKind, series []KPIDataPoint) []OutputEvent {
	events := make([]OutputEvent, 0, len(series))
	for _, point := range series {
		props := make(map[string]interface{}, 1)
		switch kind {
		case KPINewUsers:
			if point.NewUsers != nil {
				props["new_users"] = *point.NewUsers
			}
		case KPIDAU:
			if point.DAU != nil {
				props["dau"] = *point.DAU
			}
		case KPIMAU:
			if point.MAU != nil {
				props["mau"] = *point.MAU
			}
		case KPIUninstalls:
			if point.Uninstalls != nil {
				props["uninstalls"] = *point.Uninstalls
			}
		}
		events = append(events, OutputEvent{
			Event:      kpiEventNames[kind],
			Properties: props,
			Timestamp:  point.Time,
		})
	}
	return events
}

// TransformFeedSeries maps news feed card engagement buckets.
func TransformFeedSeries(name string, series []FeedDataPoint) []OutputEvent {
	events := make([]OutputEvent, 0, len(series))
	for _, point := range series {
		events = append(events, OutputEvent{
			Event: "Braze News Feed Card: " + name,
			Properties: map[string]interface{}{
				"clicks":             point.Clicks,
				"impressions":        point.Impressions,
				"unique_clicks":      point.UniqueClicks,
				"unique_impressions": point.UniqueImpressions,
			},
			Timestamp: point.Time,
		})
	}
	return events
}

// TransformSegmentSeries maps segment size buckets.
func TransformSegmentSeries(name string, series []SegmentDataPoint) []OutputEvent {
	events := make([]OutputEvent, 0, len(series))
	for _, point := range series {
		events = append(events, OutputEvent{
			Event:      "Braze segment: " + name,
			Properties: map[string]interface{}{"size": point.Size},
			Timestamp:  point.Time,
		})
	}
	return events
}

// TransformSessionSeries maps app session buckets.
func TransformSessionSeries(series []SessionDataPoint) []OutputEvent {
	events := make([]OutputEvent, 0, len(series))
	for _, point := range series {
		events = append(events, OutputEvent{
			Event:      "Braze Sessions",
			Properties: map[string]interface{}{"sessions": point.Sessions},
			Timestamp:  point.Time,
		})
	}
	return events
}
