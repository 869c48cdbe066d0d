package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CSVHeader returns the training header for vectors of n landmarks:
// lm_0_x, lm_0_y, ..., lm_{n-1}_y, label.
func CSVHeader(n int) []string {
	header := make([]string, 0, 2*n+1)
	for i := 0; i < n; i++ {
		header = append(header, fmt.Sprintf("lm_%d_x", i), fmt.Sprintf("lm_%d_y", i))
	}
	return append(header, "label")
}

// WriteCSV writes samples in the training layout. Every sample must have the
// same vector length.
func WriteCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)

	if len(samples) == 0 {
		cw.Flush()
		return cw.Error()
	}

	width := len(samples[0].Vector)
	if width%2 != 0 {
		return fmt.Errorf("sample %s: odd vector length %d", samples[0].ID, width)
	}
	if err := cw.Write(CSVHeader(width / 2)); err != nil {
		return err
	}

	record := make([]string, width+1)
	for _, s := range samples {
		if len(s.Vector) != width {
			return fmt.Errorf("sample %s: vector length %d, expected %d", s.ID, len(s.Vector), width)
		}
		for i, v := range s.Vector {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[width] = s.Label
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportDir writes one <label>.csv per label into dir and returns the files written.
func ExportDir(dir string, samples []Sample) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	var (
		order   []string
		byLabel = make(map[string][]Sample)
	)
	for _, s := range samples {
		if _, ok := byLabel[s.Label]; !ok {
			order = append(order, s.Label)
		}
		byLabel[s.Label] = append(byLabel[s.Label], s)
	}

	var files []string
	for _, label := range order {
		path := filepath.Join(dir, fileName(label)+".csv")
		if err := writeFile(path, byLabel[label]); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func writeFile(path string, samples []Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, samples); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func fileName(label string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, label)
}
