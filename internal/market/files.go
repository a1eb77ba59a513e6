package market

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrNoData is returned when a persisted series has no rows yet.
var ErrNoData = errors.New("market: no data recorded")

var fearGreedHeader = []string{"timestamp", "value"}

// AppendFearGreed appends one reading to the CSV series, writing the
// header when the file is new.
func AppendFearGreed(path string, fg FearGreed) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("market: create data dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("market: open fear greed csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("market: stat fear greed csv: %w", err)
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(fearGreedHeader); err != nil {
			return fmt.Errorf("market: write csv header: %w", err)
		}
	}
	row := []string{fg.Timestamp.Format(time.RFC3339), strconv.FormatFloat(fg.Score, 'f', -1, 64)}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("market: write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// LatestFearGreed returns the value column of the last row.
func LatestFearGreed(path string) (float64, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNoData
	}
	if err != nil {
		return 0, fmt.Errorf("market: open fear greed csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var last []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("market: read fear greed csv: %w", err)
		}
		if len(rec) == 0 || rec[0] == fearGreedHeader[0] {
			continue
		}
		last = rec
	}
	if last == nil {
		return 0, ErrNoData
	}
	v, err := strconv.ParseFloat(last[len(last)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("market: parse fear greed value %q: %w", last[len(last)-1], err)
	}
	return v, nil
}

// SaveNews writes the batch as collected_news_YYYYMMDD_HHMMSS.json and
// returns the file path.
func SaveNews(dir string, batch NewsBatch, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("market: create news dir: %w", err)
	}
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", fmt.Errorf("market: encode news: %w", err)
	}
	path := filepath.Join(dir, "collected_news_"+at.Format("20060102_150405")+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("market: write news: %w", err)
	}
	return path, nil
}
