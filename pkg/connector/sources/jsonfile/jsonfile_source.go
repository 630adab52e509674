// Package jsonfile implements the JSON-lines file source: one record
// per line. Its main job is replaying captured inbound events through
// an export pipeline.
package jsonfile

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/base"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brazesync/pkg/json"
	"github.com/ajitpratap0/brazesync/pkg/pool"
)

const credPath = "path"

// maxLineBytes caps one JSON line. Events with large property blocks
// fit comfortably.
const maxLineBytes = 1 << 20

// Source streams the lines of a JSON-lines file as records. Malformed
// lines are logged and skipped.
type Source struct {
	*base.BaseConnector

	path string
}

// NewSource creates an uninitialized JSON-lines source.
func NewSource() *Source {
	return &Source{
		BaseConnector: base.NewBaseConnector("jsonfile", core.ConnectorTypeSource, "1.0.0"),
	}
}

// Initialize resolves and checks the input path.
func (s *Source) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := s.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}

	path := cfg.Security.Credential(credPath)
	if path == "" {
		return errors.New(errors.ErrorTypeConfig, "path credential is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "cannot stat %s", path)
	}
	if info.IsDir() {
		return errors.Newf(errors.ErrorTypeConfig, "%s is a directory", path)
	}
	s.path = path

	s.GetProgressReporter().Start()

	s.GetLogger().Info("jsonfile source ready",
		zap.String("path", path),
		zap.Int64("bytes", info.Size()))
	return nil
}

// Read streams the file from the beginning, one record per line. The
// position tracks the last line parsed.
func (s *Source) Read(ctx context.Context) (*core.RecordStream, error) {
	if s.path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "source is not initialized")
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConnection, "failed to open %s", s.path)
	}

	records := make(chan *pool.Record, s.GetConfig().Performance.BufferSize)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(records)
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		var line, emitted, skipped int64
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(bytes.TrimSpace(raw)) == 0 {
				continue
			}

			record := pool.GetRecord()
			if uerr := jsonpool.Unmarshal(raw, &record.Data); uerr != nil {
				record.Release()
				skipped++
				s.GetLogger().Warn("skipping malformed line",
					zap.Int64("line", line),
					zap.Error(uerr))
				continue
			}
			record.ID = pool.GenerateID("line")
			record.Metadata.Source = "jsonfile"

			select {
			case records <- record:
			case <-ctx.Done():
				record.Release()
				return
			}
			emitted++
			s.GetProgressReporter().IncrementProcessed(1)
			_ = s.SetPosition(linePosition(line))
		}

		if serr := scanner.Err(); serr != nil {
			errs <- errors.Wrapf(serr, errors.ErrorTypeData, "failed reading %s", s.path)
			return
		}

		s.GetLogger().Info("file replay complete",
			zap.Int64("lines", line),
			zap.Int64("records", emitted),
			zap.Int64("skipped", skipped))
	}()

	return &core.RecordStream{Records: records, Errors: errs}, nil
}

// ReadBatch groups the record stream into pooled batches.
func (s *Source) ReadBatch(ctx context.Context, batchSize int) (*core.BatchStream, error) {
	if batchSize <= 0 {
		batchSize = s.GetConfig().Performance.BatchSize
	}

	stream, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	return base.BatchRecords(ctx, stream, batchSize), nil
}

// Close shuts the source down.
func (s *Source) Close(ctx context.Context) error {
	if rep := s.GetProgressReporter(); rep != nil {
		rep.Stop()
	}
	return s.BaseConnector.Close(ctx)
}

// linePosition is the 1-based number of the last line parsed.
type linePosition int64

func (p linePosition) String() string { return strconv.FormatInt(int64(p), 10) }

// Compare orders line positions numerically.
func (p linePosition) Compare(other core.Position) int {
	o, ok := other.(linePosition)
	if !ok {
		return strings.Compare(p.String(), other.String())
	}
	switch {
	case p < o:
		return -1
	case p > o:
		return 1
	default:
		return 0
	}
}
