package recorddb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Series is a fixed-step acceleration history in g.
type Series struct {
	Dt  float64
	Acc []float64
}

// Duration returns the record length in seconds.
func (s *Series) Duration() float64 {
	return float64(len(s.Acc)) * s.Dt
}

// SeriesReader reads an acceleration history by file name. External record
// archives plug in here.
type SeriesReader interface {
	ReadSeries(name string) (*Series, error)
}

// FileSeriesReader reads plain-text series files from a base directory.
// The format carries optional leading comment lines starting with '#', a
// header line of the form "NPTS= <n>, DT= <dt>" or two bare numbers
// "<npts> <dt>", then whitespace-separated acceleration values.
type FileSeriesReader struct {
	Dir string
}

// ReadSeries reads and parses the named series file.
func (r *FileSeriesReader) ReadSeries(name string) (*Series, error) {
	f, err := os.Open(r.path(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ParseSeries(f)
	if err != nil {
		return nil, fmt.Errorf("parse series %s: %w", name, err)
	}
	return s, nil
}

func (r *FileSeriesReader) path(name string) string {
	if r.Dir == "" {
		return name
	}
	return r.Dir + string(os.PathSeparator) + name
}

// ParseSeries parses a plain-text acceleration history.
func ParseSeries(rd io.Reader) (*Series, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		s         Series
		npts      int
		gotHeader bool
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !gotHeader {
			n, dt, err := parseHeader(line)
			if err != nil {
				return nil, err
			}
			npts, s.Dt = n, dt
			gotHeader = true
			continue
		}
		for _, field := range strings.Fields(line) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("bad acceleration value %q: %w", field, err)
			}
			s.Acc = append(s.Acc, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !gotHeader {
		return nil, fmt.Errorf("missing header line")
	}
	if s.Dt <= 0 {
		return nil, fmt.Errorf("non-positive dt %g", s.Dt)
	}
	if npts > 0 && len(s.Acc) != npts {
		return nil, fmt.Errorf("header declares %d points, found %d", npts, len(s.Acc))
	}
	return &s, nil
}

// parseHeader accepts "NPTS= <n>, DT= <dt>" (with or without the commas)
// or a bare "<npts> <dt>" pair.
func parseHeader(line string) (int, float64, error) {
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))

	if strings.HasPrefix(strings.ToUpper(line), "NPTS") {
		var npts int
		var dt float64
		for i := 0; i < len(fields)-1; i++ {
			switch strings.ToUpper(fields[i]) {
			case "NPTS=":
				n, err := strconv.Atoi(fields[i+1])
				if err != nil {
					return 0, 0, fmt.Errorf("bad NPTS value %q", fields[i+1])
				}
				npts = n
			case "DT=":
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return 0, 0, fmt.Errorf("bad DT value %q", fields[i+1])
				}
				dt = v
			}
		}
		if npts == 0 || dt == 0 {
			return 0, 0, fmt.Errorf("incomplete header %q", line)
		}
		return npts, dt, nil
	}

	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unrecognized header %q", line)
	}
	npts, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad point count %q", fields[0])
	}
	dt, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad dt %q", fields[1])
	}
	return npts, dt, nil
}
