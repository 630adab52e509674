package strings

import (
	"strings"
	"testing"
)

func TestBytesToString(t *testing.T) {
	b := []byte("hello world")
	s := BytesToString(b)

	if s != "hello world" {
		t.Errorf("expected 'hello world', got '%s'", s)
	}

	empty := BytesToString([]byte{})
	if empty != "" {
		t.Errorf("expected empty string, got '%s'", empty)
	}
}

func TestStringToBytes(t *testing.T) {
	s := "hello world"
	b := StringToBytes(s)

	if string(b) != "hello world" {
		t.Errorf("expected 'hello world', got '%s'", string(b))
	}

	empty := StringToBytes("")
	if empty != nil {
		t.Errorf("expected nil slice, got %v", empty)
	}
}

func TestBuilder(t *testing.T) {
	builder := NewBuilder(32)

	builder.WriteString("hello")
	builder.WriteByte(' ')
	builder.WriteString("world")

	result := builder.String()
	if result != "hello world" {
		t.Errorf("expected 'hello world', got '%s'", result)
	}

	if builder.Len() != 11 {
		t.Errorf("expected length 11, got %d", builder.Len())
	}

	builder.Reset()
	if builder.Len() != 0 {
		t.Errorf("expected length 0 after reset, got %d", builder.Len())
	}
}

func TestTrimSpace(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  hello world  ", "hello world"},
		{"hello world", "hello world"},
		{"  ", ""},
		{"", ""},
		{"\t\nhello\r\n", "hello"},
	}

	for _, test := range tests {
		result := TrimSpace(test.input)
		if result != test.expected {
			t.Errorf("TrimSpace(%q) = %q, expected %q", test.input, result, test.expected)
		}
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		s, delimiter string
		expected     []string
	}{
		{"a,b,c", ",", []string{"a", "b", "c"}},
		{"hello", ",", []string{"hello"}},
		{"a,,b", ",", []string{"a", "", "b"}},
		{"", ",", []string{""}},
		{"a,b,c", "", []string{"a,b,c"}},
	}

	for _, test := range tests {
		result := Split(test.s, test.delimiter)
		if len(result) != len(test.expected) {
			t.Errorf("Split(%q, %q) length = %d, expected %d", test.s, test.delimiter, len(result), len(test.expected))
			continue
		}

		for i, part := range result {
			if part != test.expected[i] {
				t.Errorf("Split(%q, %q)[%d] = %q, expected %q", test.s, test.delimiter, i, part, test.expected[i])
			}
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		s        string
		expected []string
	}{
		{"a, b ,c", []string{"a", "b", "c"}},
		{"account created,paid_bill", []string{"account created", "paid_bill"}},
		{" a ,, b ", []string{"a", "b"}},
		{"", nil},
		{"   ", nil},
		{",,,", nil},
	}

	for _, test := range tests {
		result := SplitAndTrim(test.s, ",")
		if len(result) != len(test.expected) {
			t.Errorf("SplitAndTrim(%q) = %v, expected %v", test.s, result, test.expected)
			continue
		}
		for i, part := range result {
			if part != test.expected[i] {
				t.Errorf("SplitAndTrim(%q)[%d] = %q, expected %q", test.s, i, part, test.expected[i])
			}
		}
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		elems     []string
		delimiter string
		expected  string
	}{
		{[]string{"a", "b", "c"}, ",", "a,b,c"},
		{[]string{"step_stats", "Step One", "email", "sent"}, ":", "step_stats:Step One:email:sent"},
		{[]string{"hello"}, ",", "hello"},
		{[]string{}, ",", ""},
		{[]string{"a", "", "b"}, ",", "a,,b"},
	}

	for _, test := range tests {
		result := Join(test.elems, test.delimiter)
		if result != test.expected {
			t.Errorf("Join(%v, %q) = %q, expected %q", test.elems, test.delimiter, result, test.expected)
		}
	}
}

func TestGetBuilderReset(t *testing.T) {
	builder := GetBuilder(Small)
	builder.WriteString("leftover")
	PutBuilder(builder, Small)

	builder = GetBuilder(Small)
	defer PutBuilder(builder, Small)
	if builder.Len() != 0 {
		t.Errorf("expected reset builder from pool, got length %d", builder.Len())
	}
}

func TestSprintf(t *testing.T) {
	if got := Sprintf("no args"); got != "no args" {
		t.Errorf("Sprintf without args = %q", got)
	}
	if got := Sprintf("Braze campaign: %s", "Onboarding"); got != "Braze campaign: Onboarding" {
		t.Errorf("Sprintf = %q", got)
	}
}

func TestURLBuilder(t *testing.T) {
	tests := []struct {
		name     string
		build    func() string
		expected string
	}{
		{
			name: "basic URL with params",
			build: func() string {
				ub := NewURLBuilder("https://rest.iad-01.braze.com")
				defer ub.Close()
				return ub.AddParam("key", "value").AddParam("foo", "bar").String()
			},
			expected: "https://rest.iad-01.braze.com?key=value&foo=bar",
		},
		{
			name: "URL with path segments",
			build: func() string {
				ub := NewURLBuilder("https://rest.iad-01.braze.com")
				defer ub.Close()
				return ub.AddPath("campaigns", "list").String()
			},
			expected: "https://rest.iad-01.braze.com/campaigns/list",
		},
		{
			name: "URL with path and params",
			build: func() string {
				ub := NewURLBuilder("https://rest.iad-01.braze.com")
				defer ub.Close()
				return ub.AddPath("campaigns", "data_series").AddParam("campaign_id", "abc").AddParamInt("length", 1).String()
			},
			expected: "https://rest.iad-01.braze.com/campaigns/data_series?campaign_id=abc&length=1",
		},
		{
			name: "URL with encoding",
			build: func() string {
				ub := NewURLBuilder("https://rest.iad-01.braze.com")
				defer ub.Close()
				return ub.AddParam("ending_at", "2022-03-28T00:00:00.000Z").AddParam("q", "a+b=c").String()
			},
			expected: "https://rest.iad-01.braze.com?ending_at=2022-03-28T00%3A00%3A00.000Z&q=a%2Bb%3Dc",
		},
		{
			name: "boolean params",
			build: func() string {
				ub := NewURLBuilder("https://rest.iad-01.braze.com")
				defer ub.Close()
				return ub.AddParamBool("include_variant_breakdown", true).AddParamBool("draft", false).String()
			},
			expected: "https://rest.iad-01.braze.com?include_variant_breakdown=true&draft=false",
		},
		{
			name: "empty path segments skipped",
			build: func() string {
				ub := NewURLBuilder("https://rest.iad-01.braze.com")
				defer ub.Close()
				return ub.AddPath("kpi", "", "dau", "data_series").String()
			},
			expected: "https://rest.iad-01.braze.com/kpi/dau/data_series",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.build()
			if result != tt.expected {
				t.Errorf("URLBuilder test failed\nExpected: %s\nGot:      %s", tt.expected, result)
			}
		})
	}
}

func BenchmarkBuilder(b *testing.B) {
	parts := []string{"step_stats", ":", "Step One", ":", "email", ":", "sent"}

	b.Run("Pooled", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			builder := GetBuilder(Small)
			for _, part := range parts {
				builder.WriteString(part)
			}
			_ = builder.String()
			PutBuilder(builder, Small)
		}
	})

	b.Run("Standard", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			var builder strings.Builder
			for _, part := range parts {
				builder.WriteString(part)
			}
			_ = builder.String()
		}
	})
}

func BenchmarkURLBuilder(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ub := NewURLBuilder("https://rest.iad-01.braze.com")
		ub.AddPath("canvas", "data_series").
			AddParam("canvas_id", "0f5c2cbd").
			AddParamInt("length", 1).
			AddParamBool("include_step_breakdown", true)
		_ = ub.String()
		ub.Close()
	}
}
