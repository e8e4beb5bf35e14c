package dataframe

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// ReadOption configures ReadCSV.
type ReadOption func(*readConfig)

type readConfig struct {
	names []string
	sep   rune
}

// WithNames supplies the column names; the first line is then data.
func WithNames(names ...string) ReadOption {
	return func(c *readConfig) { c.names = names }
}

// WithSeparator sets the field delimiter (default ',').
func WithSeparator(sep rune) ReadOption {
	return func(c *readConfig) { c.sep = sep }
}

var nullTokens = map[string]bool{"": true, "NA": true, "N/A": true, "NaN": true, "nan": true, "null": true}

// ReadCSV parses a CSV table. Without WithNames the first record is the
// header. A column is numeric when every non-null cell parses as a float.
func ReadCSV(r io.Reader, opts ...ReadOption) (*Frame, error) {
	cfg := readConfig{sep: ','}
	for _, opt := range opts {
		opt(&cfg)
	}
	cr := csv.NewReader(r)
	cr.Comma = cfg.sep
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "dataframe.ReadCSV")
	}

	names := cfg.names
	if names == nil {
		if len(records) == 0 {
			return nil, errors.Wrapf(errors.ErrEmptyData, "dataframe.ReadCSV: no header")
		}
		names = records[0]
		records = records[1:]
	}
	for i, rec := range records {
		if len(rec) != len(names) {
			return nil, errors.Wrapf(errors.NewDimensionError("dataframe.ReadCSV", len(names), len(rec), 1), "record %d", i+1)
		}
	}

	cols := make([]*Series, len(names))
	for j, name := range names {
		raw := make([]string, len(records))
		for i, rec := range records {
			raw[i] = strings.TrimSpace(rec[j])
		}
		cols[j] = inferColumn(strings.TrimSpace(name), raw)
	}
	f, err := New(cols...)
	if err != nil {
		return nil, err
	}
	rows, nc := f.Shape()
	log.GetLoggerWithName("dataframe").Debug("CSV parsed",
		log.OperationKey, log.OperationLoad,
		log.SamplesKey, rows,
		log.FeaturesKey, nc,
	)
	return f, nil
}

func inferColumn(name string, raw []string) *Series {
	num := make([]float64, len(raw))
	for i, s := range raw {
		if nullTokens[s] {
			num[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			str := make([]string, len(raw))
			for k, t := range raw {
				if !nullTokens[t] {
					str[k] = t
				}
			}
			return NewString(name, str)
		}
		num[i] = v
	}
	return NewNumeric(name, num)
}
