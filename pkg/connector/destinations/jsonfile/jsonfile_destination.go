// Package jsonfile implements the JSON-lines file destination: one
// record per line. Its main job is dumping import passes to disk for
// inspection or later replay.
package jsonfile

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/base"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	jsonpool "github.com/ajitpratap0/brazesync/pkg/json"
	"github.com/ajitpratap0/brazesync/pkg/pool"
)

// Credential keys recognized by the destination.
const (
	credPath   = "path"
	credAppend = "append"
)

// Destination writes record payloads as JSON lines. Writes from
// concurrent streams interleave whole lines.
type Destination struct {
	*base.BaseConnector

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewDestination creates an uninitialized JSON-lines destination.
func NewDestination() *Destination {
	return &Destination{
		BaseConnector: base.NewBaseConnector("jsonfile", core.ConnectorTypeDestination, "1.0.0"),
	}
}

// Initialize opens the output file, truncating unless the append
// credential is set.
func (d *Destination) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	if err := d.BaseConnector.Initialize(ctx, cfg); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}

	path := cfg.Security.Credential(credPath)
	if path == "" {
		return errors.New(errors.ErrorTypeConfig, "path credential is required")
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if raw := cfg.Security.Credential(credAppend); raw != "" {
		appendMode, err := strconv.ParseBool(raw)
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeConfig, "invalid boolean credential %q", credAppend)
		}
		if appendMode {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConfig, "failed to open %s", path)
	}
	d.file = file
	d.writer = bufio.NewWriter(file)
	d.path = path

	d.GetProgressReporter().Start()

	d.GetLogger().Info("jsonfile destination ready",
		zap.String("path", path),
		zap.Bool("append", flags&os.O_APPEND != 0))
	return nil
}

// Write appends one line per record and flushes when the stream ends.
// Records are released after writing.
func (d *Destination) Write(ctx context.Context, stream *core.RecordStream) error {
	if d.writer == nil {
		return errors.New(errors.ErrorTypeConfig, "destination is not initialized")
	}

	for record := range stream.Records {
		err := d.writeRecord(record)
		record.Release()
		if err != nil {
			return err
		}
		d.GetProgressReporter().IncrementProcessed(1)
	}
	if err := d.Flush(); err != nil {
		return err
	}

	if err, ok := <-stream.Errors; ok && err != nil {
		return err
	}
	return nil
}

// WriteBatch appends record batches, flushing after each batch so a
// crash loses at most one batch. Batch slices go back to the pool.
func (d *Destination) WriteBatch(ctx context.Context, stream *core.BatchStream) error {
	if d.writer == nil {
		return errors.New(errors.ErrorTypeConfig, "destination is not initialized")
	}

	for batch := range stream.Batches {
		for _, record := range batch {
			err := d.writeRecord(record)
			record.Release()
			if err != nil {
				pool.PutBatchSlice(batch)
				return err
			}
		}
		d.GetProgressReporter().IncrementProcessed(int64(len(batch)))
		pool.PutBatchSlice(batch)
		if err := d.Flush(); err != nil {
			return err
		}
	}

	if err, ok := <-stream.Errors; ok && err != nil {
		return err
	}
	return nil
}

func (d *Destination) writeRecord(record *pool.Record) error {
	payload, err := jsonpool.Marshal(record.Data)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode record")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.writer.Write(payload); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConnection, "failed to write %s", d.path)
	}
	if err := d.writer.WriteByte('\n'); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConnection, "failed to write %s", d.path)
	}
	return nil
}

// Flush forces buffered lines to disk.
func (d *Destination) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writer == nil {
		return nil
	}
	if err := d.writer.Flush(); err != nil {
		return errors.Wrapf(err, errors.ErrorTypeConnection, "failed to flush %s", d.path)
	}
	return nil
}

// Close flushes and closes the output file.
func (d *Destination) Close(ctx context.Context) error {
	if err := d.Flush(); err != nil {
		d.GetLogger().Warn("failed to flush on close", zap.Error(err))
	}

	d.mu.Lock()
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			d.GetLogger().Warn("failed to close output file", zap.Error(err))
		}
		d.file = nil
		d.writer = nil
	}
	d.mu.Unlock()

	if rep := d.GetProgressReporter(); rep != nil {
		rep.Stop()
	}
	return d.BaseConnector.Close(ctx)
}
