package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

type chunk struct {
	index   int
	records [][]string
}

type parsedChunk struct {
	index int
	rows  [][]float64
}

// CSVLoader reads a numeric CSV file with a header row. TargetColumn names the
// regression target; an empty TargetColumn means the file has no target
// (prediction input). All other columns are features.
type CSVLoader struct {
	TargetColumn string
	Threads      int
	ChunkSize    int
	Logger       *zap.Logger
}

func (l *CSVLoader) LoadFile(ctx context.Context, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return l.Load(ctx, f)
}

func (l *CSVLoader) Load(ctx context.Context, r io.Reader) (*Dataset, error) {
	var logger = l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var reader = csv.NewReader(r)
	reader.ReuseRecord = false
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty csv")
		}
		return nil, err
	}
	var targetIndex = -1
	var columns []string
	for i, name := range header {
		if name == l.TargetColumn && l.TargetColumn != "" {
			targetIndex = i
		} else {
			columns = append(columns, name)
		}
	}
	if l.TargetColumn != "" && targetIndex < 0 {
		return nil, fmt.Errorf("target column %q not found", l.TargetColumn)
	}

	g, ctx := errgroup.WithContext(ctx)
	var chunks = make(chan chunk, 16)
	var results = make(chan parsedChunk, 16)

	g.Go(func() error {
		defer close(chunks)
		return l.readChunks(ctx, reader, chunks)
	})

	var wg = &sync.WaitGroup{}
	for i := 0; i < max(1, l.Threads); i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			return parseChunks(ctx, chunks, results, len(header))
		})
	}

	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	var parsed = make(map[int][][]float64)
	g.Go(func() error {
		for c := range results {
			parsed[c.index] = c.rows
		}
		return nil
	})

	if err = g.Wait(); err != nil {
		return nil, err
	}

	var rows [][]float64
	for i := 0; i < len(parsed); i++ {
		rows = append(rows, parsed[i]...)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv has no data rows")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("csv has no feature columns")
	}

	var ds = &Dataset{
		Columns: columns,
		X:       mat.NewDense(len(rows), len(columns), nil),
	}
	if targetIndex >= 0 {
		ds.Y = make([]float64, len(rows))
	}
	for i, row := range rows {
		var col int
		for j, v := range row {
			if j == targetIndex {
				ds.Y[i] = v
				continue
			}
			ds.X.Set(i, col, v)
			col++
		}
	}
	logger.Info("Loaded dataset",
		zap.Int("rows", len(rows)),
		zap.Int("features", len(columns)),
		zap.String("target", l.TargetColumn))
	return ds, nil
}

func (l *CSVLoader) readChunks(ctx context.Context, reader *csv.Reader, chunks chan<- chunk) error {
	var chunkSize = l.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	var current = chunk{}
	var send = func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunks <- current:
		}
		current = chunk{index: current.index + 1}
		return nil
	}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		current.records = append(current.records, record)
		if len(current.records) == chunkSize {
			if err = send(); err != nil {
				return err
			}
		}
	}
	if len(current.records) != 0 {
		return send()
	}
	return nil
}

func parseChunks(ctx context.Context, chunks <-chan chunk, results chan<- parsedChunk, width int) error {
	for c := range chunks {
		var rows = make([][]float64, len(c.records))
		for i, record := range c.records {
			if len(record) != width {
				return fmt.Errorf("record has %v fields, header has %v", len(record), width)
			}
			var row = make([]float64, width)
			for j, s := range record {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return fmt.Errorf("parse %q: %w", s, err)
				}
				row[j] = v
			}
			rows[i] = row
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case results <- parsedChunk{index: c.index, rows: rows}:
		}
	}
	return nil
}
