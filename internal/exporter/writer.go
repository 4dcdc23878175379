package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/robotomize/go-todorun/internal/result"
)

type Writer interface {
	WriteReport(ctx context.Context, suite *result.Suite, format Format) error
}

type WriterOption func(*writer)

func WriteToFile(pth string) WriterOption {
	return func(w *writer) {
		w.pth = pth
	}
}

func WriteReportTo(writers ...io.Writer) WriterOption {
	return func(w *writer) {
		w.reportWriters = append(w.reportWriters, writers...)
	}
}

func NewWriter(opts ...WriterOption) Writer {
	w := writer{reportWriters: []io.Writer{io.Discard}}
	for _, o := range opts {
		o(&w)
	}

	return &w
}

type writer struct {
	pth           string
	reportWriters []io.Writer
}

// WriteReport renders the suite and writes it to every configured destination.
// The report is rendered before any destination is opened, so a bad format
// leaves no partial file behind.
func (o *writer) WriteReport(ctx context.Context, suite *result.Suite, format Format) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}

	content, err := Marshal(suite, format)
	if err != nil {
		return err
	}

	writers := make([]io.Writer, len(o.reportWriters))
	copy(writers, o.reportWriters)

	if o.pth != "" {
		if err = mkdirFor(o.pth); err != nil {
			return err
		}

		file, openErr := os.OpenFile(o.pth, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if openErr != nil {
			return fmt.Errorf("os.OpenFile: %w", openErr)
		}

		defer func() {
			if syncErr := file.Sync(); syncErr != nil && err == nil {
				err = fmt.Errorf("file Sync: %w", syncErr)
			}

			_ = file.Close()
		}()

		writers = append(writers, file)
	}

	if _, err = io.Copy(io.MultiWriter(writers...), bytes.NewReader(content)); err != nil {
		return fmt.Errorf("io.Copy: %w", err)
	}

	return nil
}
