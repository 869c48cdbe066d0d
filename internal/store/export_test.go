package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCSVHeader(t *testing.T) {
	header := CSVHeader(21)

	if len(header) != 43 {
		t.Fatalf("expected 43 columns, got %d", len(header))
	}
	if header[0] != "lm_0_x" || header[1] != "lm_0_y" || header[41] != "lm_20_y" || header[42] != "label" {
		t.Errorf("unexpected header %v", header)
	}
}

func TestWriteCSV(t *testing.T) {
	samples := []Sample{
		{ID: "a", Label: "thumbs_up", Vector: []float64{0, 0, 0.1, 0.2}},
		{ID: "b", Label: "fist", Vector: []float64{0, 0, -0.05, 0.125}},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, samples); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	want := "lm_0_x,lm_0_y,lm_1_x,lm_1_y,label\n" +
		"0,0,0.1,0.2,thumbs_up\n" +
		"0,0,-0.05,0.125,fist\n"
	if buf.String() != want {
		t.Errorf("unexpected csv:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteCSV_Errors(t *testing.T) {
	t.Run("mismatched length", func(t *testing.T) {
		samples := []Sample{
			{ID: "a", Label: "x", Vector: []float64{0, 0}},
			{ID: "b", Label: "x", Vector: []float64{0, 0, 1, 1}},
		}
		if err := WriteCSV(&bytes.Buffer{}, samples); err == nil {
			t.Error("expected error for mismatched vectors")
		}
	})

	t.Run("odd length", func(t *testing.T) {
		if err := WriteCSV(&bytes.Buffer{}, []Sample{{ID: "a", Vector: []float64{0}}}); err == nil {
			t.Error("expected error for odd vector")
		}
	})

	t.Run("empty writes nothing", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteCSV(&buf, nil); err != nil {
			t.Fatalf("WriteCSV: %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("expected empty output, got %q", buf.String())
		}
	})
}

func TestExportDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	samples := []Sample{
		{ID: "a", Label: "peace", Vector: []float64{0, 0}},
		{ID: "b", Label: "a/b", Vector: []float64{0, 0}},
		{ID: "c", Label: "peace", Vector: []float64{0, 0}},
	}

	files, err := ExportDir(dir, samples)
	if err != nil {
		t.Fatalf("ExportDir: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	if filepath.Base(files[1]) != "a_b.csv" {
		t.Errorf("expected sanitized file name, got %s", files[1])
	}

	data, err := os.ReadFile(filepath.Join(dir, "peace.csv"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Errorf("expected header plus 2 rows, got %d lines", lines)
	}
}
