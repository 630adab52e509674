package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	"github.com/ajitpratap0/brazesync/pkg/pool"
)

func writeLines(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestSource(t *testing.T, path string) *Source {
	t.Helper()
	cfg := config.NewBaseConfig("jsonfile", "source")
	cfg.Security.Credentials[credPath] = path

	source := NewSource()
	require.NoError(t, source.Initialize(context.Background(), cfg))
	t.Cleanup(func() { _ = source.Close(context.Background()) })
	return source
}

func drain(t *testing.T, stream *core.RecordStream) ([]*pool.Record, error) {
	t.Helper()
	var records []*pool.Record
	for record := range stream.Records {
		records = append(records, record)
	}
	if err, ok := <-stream.Errors; ok {
		return records, err
	}
	return records, nil
}

func TestInitialize(t *testing.T) {
	t.Run("missing path credential", func(t *testing.T) {
		cfg := config.NewBaseConfig("jsonfile", "source")
		err := NewSource().Initialize(context.Background(), cfg)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("nonexistent file", func(t *testing.T) {
		cfg := config.NewBaseConfig("jsonfile", "source")
		cfg.Security.Credentials[credPath] = filepath.Join(t.TempDir(), "missing.jsonl")
		err := NewSource().Initialize(context.Background(), cfg)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("directory", func(t *testing.T) {
		cfg := config.NewBaseConfig("jsonfile", "source")
		cfg.Security.Credentials[credPath] = t.TempDir()
		err := NewSource().Initialize(context.Background(), cfg)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})
}

func TestRead(t *testing.T) {
	path := writeLines(t, strings.Join([]string{
		`{"event":"signed_up","distinct_id":"u1"}`,
		`{"event":"upgraded","distinct_id":"u2","properties":{"plan":"pro"}}`,
		`not json`,
		``,
		`{"event":"churned","distinct_id":"u3"}`,
	}, "\n")+"\n")
	source := newTestSource(t, path)

	stream, err := source.Read(context.Background())
	require.NoError(t, err)

	records, err := drain(t, stream)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "signed_up", records[0].Data["event"])
	assert.Equal(t, "upgraded", records[1].Data["event"])
	assert.Equal(t, "churned", records[2].Data["event"])

	props, ok := records[1].Data["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pro", props["plan"])

	for _, record := range records {
		assert.True(t, strings.HasPrefix(record.ID, "line-"))
		assert.Equal(t, "jsonfile", record.Metadata.Source)
		record.Release()
	}

	require.NotNil(t, source.GetPosition())
	assert.Equal(t, "5", source.GetPosition().String())
}

func TestReadEmptyFile(t *testing.T) {
	source := newTestSource(t, writeLines(t, ""))

	stream, err := source.Read(context.Background())
	require.NoError(t, err)

	records, err := drain(t, stream)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Nil(t, source.GetPosition())
}

func TestReadCancelled(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, `{"event":"e"}`)
	}
	source := newTestSource(t, writeLines(t, strings.Join(lines, "\n")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream, err := source.Read(ctx)
	require.NoError(t, err)

	records, err := drain(t, stream)
	require.NoError(t, err)
	// The buffered channel may hold a few records sent before the
	// cancel was observed; the stream must still terminate.
	assert.Less(t, len(records), 100)
	for _, record := range records {
		record.Release()
	}
}

func TestReadBatch(t *testing.T) {
	path := writeLines(t, strings.Join([]string{
		`{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`, `{"n":5}`,
	}, "\n"))
	source := newTestSource(t, path)

	stream, err := source.ReadBatch(context.Background(), 2)
	require.NoError(t, err)

	var sizes []int
	for batch := range stream.Batches {
		sizes = append(sizes, len(batch))
		for _, record := range batch {
			record.Release()
		}
		pool.PutBatchSlice(batch)
	}
	if err, ok := <-stream.Errors; ok {
		require.NoError(t, err)
	}

	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestLinePositionCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b linePosition
		want int
	}{
		{name: "less", a: 3, b: 7, want: -1},
		{name: "equal", a: 5, b: 5, want: 0},
		{name: "greater", a: 9, b: 2, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}
