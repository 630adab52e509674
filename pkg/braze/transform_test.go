package braze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jsonpool "github.com/ajitpratap0/brazesync/pkg/json"
)

const campaignPointJSON = `{
	"time": "2024-05-16",
	"conversions": 3,
	"revenue": 12.5,
	"unique_recipients": 100,
	"currency": "USD",
	"messages": {
		"email": [
			{"variation_name": "Variation A", "sent": 50, "delivered": 48, "unique_opens": 21}
		],
		"ios_push": [
			{"sent": 25, "direct_opens": 4}
		]
	},
	"breakdown": {"x": 1},
	"tags": ["a", "b"],
	"archived_at": null
}`

func decodeCampaignPoint(t *testing.T) CampaignDataPoint {
	t.Helper()
	var point CampaignDataPoint
	require.NoError(t, jsonpool.Unmarshal([]byte(campaignPointJSON), &point))
	return point
}

func TestCampaignDataPointUnmarshal(t *testing.T) {
	point := decodeCampaignPoint(t)

	assert.Equal(t, "2024-05-16", point.Time)
	assert.Len(t, point.Messages, 2)
	assert.Equal(t, "Variation A", point.Messages["email"][0].VariationName)
	assert.Equal(t, float64(50), point.Messages["email"][0].Stats["sent"])
	assert.Empty(t, point.Messages["ios_push"][0].VariationName)

	// Scalars survive, containers and nulls do not.
	assert.Equal(t, float64(3), point.Stats["conversions"])
	assert.Equal(t, "USD", point.Stats["currency"])
	assert.NotContains(t, point.Stats, "time")
	assert.NotContains(t, point.Stats, "messages")
	assert.NotContains(t, point.Stats, "breakdown")
	assert.NotContains(t, point.Stats, "tags")
	assert.NotContains(t, point.Stats, "archived_at")
}

func TestTransformCampaignSeries(t *testing.T) {
	point := decodeCampaignPoint(t)
	events := TransformCampaignSeries("Onboarding", []CampaignDataPoint{point})
	require.Len(t, events, 1)

	evt := events[0]
	assert.Equal(t, "Braze campaign: Onboarding", evt.Event)
	assert.Equal(t, "2024-05-16", evt.Timestamp)

	props := evt.Properties
	assert.Equal(t, float64(3), props["conversions"])
	assert.Equal(t, 12.5, props["revenue"])
	assert.Equal(t, float64(100), props["unique_recipients"])
	assert.Equal(t, "USD", props["currency"])

	assert.Equal(t, float64(50), props["email:Variation A:sent"])
	assert.Equal(t, float64(48), props["email:Variation A:delivered"])
	assert.Equal(t, float64(21), props["email:Variation A:unique_opens"])
	assert.Equal(t, float64(25), props["ios_push:sent"])
	assert.Equal(t, float64(4), props["ios_push:direct_opens"])

	assert.NotContains(t, props, "time")
	assert.NotContains(t, props, "breakdown")
}

const canvasSeriesJSON = `{
	"message": "success",
	"data": {
		"name": "Welcome Flow",
		"stats": [
			{
				"time": "2024-05-16",
				"total_stats": {"revenue": 9.99, "conversions": 2, "entries": 50},
				"variant_stats": {
					"var-1": {"name": "Variant One", "revenue": 5, "entries": 30}
				},
				"step_stats": {
					"step-1": {
						"name": "Step One",
						"revenue": 3,
						"conversions": 1,
						"messages": {
							"email": [{"variation_name": "V2", "sent": 10, "delivered": 9}],
							"android_push": [{"sent": 7}]
						}
					}
				}
			}
		]
	}
}`

func TestTransformCanvasSeries(t *testing.T) {
	var resp canvasSeriesResponse
	require.NoError(t, jsonpool.Unmarshal([]byte(canvasSeriesJSON), &resp))
	require.Len(t, resp.Data.Stats, 1)
	assert.Equal(t, "Welcome Flow", resp.Data.Name)

	events := TransformCanvasSeries("Welcome Flow", &resp.Data)
	require.Len(t, events, 1)

	evt := events[0]
	assert.Equal(t, "Braze canvas: Welcome Flow", evt.Event)
	assert.Equal(t, "2024-05-16", evt.Timestamp)

	props := evt.Properties
	assert.Equal(t, 9.99, props["total_stats:revenue"])
	assert.Equal(t, float64(2), props["total_stats:conversions"])
	assert.Equal(t, float64(50), props["total_stats:entries"])

	assert.Equal(t, float64(5), props["variant_stats:Variant One:revenue"])
	assert.Equal(t, float64(30), props["variant_stats:Variant One:entries"])

	assert.Equal(t, float64(3), props["step_stats:Step One:revenue"])
	assert.Equal(t, float64(1), props["step_stats:Step One:conversions"])
	assert.Equal(t, float64(10), props["step_stats:Step One:email:V2:sent"])
	assert.Equal(t, float64(9), props["step_stats:Step One:email:V2:delivered"])
	assert.Equal(t, float64(7), props["step_stats:Step One:android_push:sent"])

	// Display names are namespace segments, never values, and the raw
	// API ids never leak into keys.
	for key := range props {
		assert.NotContains(t, key, "var-1")
		assert.NotContains(t, key, "step-1")
	}
	assert.NotContains(t, props, "name")

	t.Run("nil series yields no events", func(t *testing.T) {
		assert.Nil(t, TransformCanvasSeries("x", nil))
	})
}

func TestTransformEventSeries(t *testing.T) {
	events := TransformEventSeries("Purchase Completed", []EventDataPoint{
		{Time: "2024-05-15", Count: 12},
		{Time: "2024-05-16", Count: 0},
	})
	require.Len(t, events, 2)
	assert.Equal(t, "Braze custom event: Purchase Completed", events[0].Event)
	assert.Equal(t, "2024-05-15", events[0].Timestamp)
	assert.Equal(t, float64(12), events[0].Properties["count"])
	assert.Equal(t, float64(0), events[1].Properties["count"])
}

func TestTransformKPISeries(t *testing.T) {
	val := func(f float64) *float64 { return &f }

	cases := []struct {
		kind  KPIKind
		point KPIDataPoint
		event string
		field string
		want  float64
	}{
		{KPINewUsers, KPIDataPoint{Time: "2024-05-16", NewUsers: val(17)}, "Braze KPI: Daily New Users", "new_users", 17},
		{KPIDAU, KPIDataPoint{Time: "2024-05-16", DAU: val(1500)}, "Braze KPI: Daily Active Users", "dau", 1500},
		{KPIMAU, KPIDataPoint{Time: "2024-05-16", MAU: val(52000)}, "Braze KPI: Monthly Active Users", "mau", 52000},
		{KPIUninstalls, KPIDataPoint{Time: "2024-05-16", Uninstalls: val(4)}, "Braze KPI: Daily Uninstalls", "uninstalls", 4},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			events := TransformKPISeries(tc.kind, []KPIDataPoint{tc.point})
			require.Len(t, events, 1)
			assert.Equal(t, tc.event, events[0].Event)
			assert.Equal(t, "2024-05-16", events[0].Timestamp)
			assert.Equal(t, tc.want, events[0].Properties[tc.field])
			assert.Len(t, events[0].Properties, 1)
		})
	}

	t.Run("missing counter leaves properties empty", func(t *testing.T) {
		events := TransformKPISeries(KPIDAU, []KPIDataPoint{{Time: "2024-05-16"}})
		require.Len(t, events, 1)
		assert.Empty(t, events[0].Properties)
	})
}

func TestTransformFeedSeries(t *testing.T) {
	events := TransformFeedSeries("Spring Sale", []FeedDataPoint{
		{Time: "2024-05-16", Clicks: 10, Impressions: 200, UniqueClicks: 8, UniqueImpressions: 150},
	})
	require.Len(t, events, 1)
	assert.Equal(t, "Braze News Feed Card: Spring Sale", events[0].Event)
	assert.Equal(t, map[string]interface{}{
		"clicks":             float64(10),
		"impressions":        float64(200),
		"unique_clicks":      float64(8),
		"unique_impressions": float64(150),
	}, events[0].Properties)
}

func TestTransformSegmentSeries(t *testing.T) {
	events := TransformSegmentSeries("High Value", []SegmentDataPoint{{Time: "2024-05-16", Size: 4321}})
	require.Len(t, events, 1)
	assert.Equal(t, "Braze segment: High Value", events[0].Event)
	assert.Equal(t, float64(4321), events[0].Properties["size"])
}

func TestTransformSessionSeries(t *testing.T) {
	events := TransformSessionSeries([]SessionDataPoint{
		{Time: "2024-05-15", Sessions: 900},
		{Time: "2024-05-16", Sessions: 1100},
	})
	require.Len(t, events, 2)
	for _, evt := range events {
		assert.Equal(t, "Braze Sessions", evt.Event)
	}
	assert.Equal(t, float64(900), events[0].Properties["sessions"])
	assert.Equal(t, float64(1100), events[1].Properties["sessions"])
}
