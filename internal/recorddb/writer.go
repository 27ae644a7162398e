package recorddb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SelectedRecord pairs a selected database record with its scale factor.
type SelectedRecord struct {
	Record Record
	Scale  float64
}

// WriteRecords writes the scaled acceleration histories of the selected
// records into dir, one file per component, together with manifest files
// listing the series names, time steps and durations. The reader resolves
// the record file names; records whose series cannot be read fail the write.
func WriteRecords(dir string, selected []SelectedRecord, reader SeriesReader) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	n := len(selected)
	names1 := make([]string, n)
	names2 := make([]string, n)
	dts := make([]float64, n)
	durs := make([]float64, n)
	twoComponent := false

	for i, sel := range selected {
		s, err := writeScaled(dir, sel.Record.FileH1, sel.Scale, reader)
		if err != nil {
			return fmt.Errorf("record %s: %w", sel.Record.ID, err)
		}
		names1[i] = outName(sel.Record.FileH1)
		dts[i] = s.Dt
		durs[i] = s.Duration()

		if sel.Record.FileH2 != "" {
			if _, err := writeScaled(dir, sel.Record.FileH2, sel.Scale, reader); err != nil {
				return fmt.Errorf("record %s: %w", sel.Record.ID, err)
			}
			names2[i] = outName(sel.Record.FileH2)
			twoComponent = true
		}
	}

	if twoComponent {
		if err := writeLines(filepath.Join(dir, "GMR_H1_names.txt"), names1); err != nil {
			return err
		}
		if err := writeLines(filepath.Join(dir, "GMR_H2_names.txt"), names2); err != nil {
			return err
		}
	} else {
		if err := writeLines(filepath.Join(dir, "GMR_names.txt"), names1); err != nil {
			return err
		}
	}
	if err := writeFloats(filepath.Join(dir, "GMR_dts.txt"), dts); err != nil {
		return err
	}
	return writeFloats(filepath.Join(dir, "GMR_durs.txt"), durs)
}

// writeScaled reads a series, applies the scale factor and writes it as one
// acceleration value per line.
func writeScaled(dir, name string, scale float64, reader SeriesReader) (*Series, error) {
	s, err := reader.ReadSeries(name)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "NPTS= %d, DT= %g\n", len(s.Acc), s.Dt)
	for _, a := range s.Acc {
		fmt.Fprintf(&b, "%.6e\n", a*scale)
	}
	if err := os.WriteFile(filepath.Join(dir, outName(name)), []byte(b.String()), 0o644); err != nil {
		return nil, err
	}
	return s, nil
}

// outName flattens a possibly nested source name into a flat output file.
func outName(name string) string {
	return strings.ReplaceAll(filepath.ToSlash(name), "/", "_")
}

func writeLines(path string, lines []string) error {
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

func writeFloats(path string, vals []float64) error {
	lines := make([]string, len(vals))
	for i, v := range vals {
		lines[i] = fmt.Sprintf("%g", v)
	}
	return writeLines(path, lines)
}
