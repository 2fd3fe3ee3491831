package out

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"batteryusage/internal/modules/snapshot/domain"
	snapshotout "batteryusage/internal/modules/snapshot/port/out"
	apperrors "batteryusage/internal/platform/errors"
)

const maxLineBytes = 4 << 20

// JSONLRecordReader reads one JSON object per line. Blank lines are ignored;
// undecodable lines are counted, not fatal.
type JSONLRecordReader struct{}

func NewJSONLRecordReader() snapshotout.RecordReader {
	return JSONLRecordReader{}
}

func (JSONLRecordReader) ReadSnapshots(ctx context.Context, path string) (domain.RecordBatch, error) {
	batch := domain.RecordBatch{}
	err := eachLine(ctx, path, func(line []byte) {
		record := domain.Record{}
		if err := json.Unmarshal(line, &record); err != nil {
			batch.Malformed++
			return
		}
		batch.Records = append(batch.Records, record)
	})
	if err != nil {
		return domain.RecordBatch{}, err
	}
	return batch, nil
}

func (JSONLRecordReader) ReadUsagePeriods(ctx context.Context, path string) ([]domain.UsagePeriod, int, error) {
	periods := make([]domain.UsagePeriod, 0)
	malformed := 0
	err := eachLine(ctx, path, func(line []byte) {
		p := domain.UsagePeriod{}
		if err := json.Unmarshal(line, &p); err != nil {
			malformed++
			return
		}
		periods = append(periods, p)
	})
	if err != nil {
		return nil, 0, err
	}
	return periods, malformed, nil
}

func eachLine(ctx context.Context, path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: input file %s", apperrors.ErrNotFound, path)
		}
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}
