// Package validate checks decoded records against the values they were
// encoded from, within per-field tolerances.
package validate

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"goasterix/internal/codec"
)

// Default tolerances for radar round trips: one wire LSB of slack plus
// headroom for unit conversion.
const (
	DefaultRangeToleranceM     = 500.0
	DefaultAzimuthToleranceDeg = 0.5
	DefaultTimeToleranceS      = 0.01
)

// Compare reports whether two linear values agree within an absolute
// tolerance.
func Compare(want, got, tolerance float64) bool {
	return math.Abs(want-got) <= tolerance
}

// CompareAngles reports whether two angles in [0, 360) agree within a
// tolerance, measured the short way around the circle, so 359.9 and 0.1
// are 0.2 degrees apart.
func CompareAngles(want, got, tolerance float64) bool {
	d := math.Abs(want - got)
	if 360-d < d {
		d = 360 - d
	}
	return d <= tolerance
}

// Expectation is one field check: a slash path from the item name down
// to the member, the expected value and the tolerance to allow.
// Circular marks angles that wrap at 360 degrees.
type Expectation struct {
	Path      string
	Want      float64
	Tolerance float64
	Circular  bool
}

// FieldResult is the outcome of one expectation.
type FieldResult struct {
	Path string
	Want float64
	Got  float64
	Pass bool
	Err  error
}

// Stats accumulates validation outcomes across records.
type Stats struct {
	Records int
	Checked int
	Passed  int
	Failed  int
	Errors  []string
}

// SuccessRate returns the fraction of field checks that passed.
func (s *Stats) SuccessRate() float64 {
	if s.Checked == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Checked)
}

// Validator checks decoded records against expectations and keeps
// aggregate statistics. It never mutates the records it inspects.
type Validator struct {
	logger *logrus.Logger
	stats  Stats
}

// New returns a Validator logging failures through the given logger.
func New(logger *logrus.Logger) *Validator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Validator{logger: logger}
}

// ValidateRecord checks every expectation against the record. It
// returns the per-field results and whether all of them passed.
func (v *Validator) ValidateRecord(rec *codec.Record, expectations []Expectation) ([]FieldResult, bool) {
	v.stats.Records++
	results := make([]FieldResult, 0, len(expectations))
	ok := true
	for _, exp := range expectations {
		res := check(rec, exp)
		results = append(results, res)

		v.stats.Checked++
		if res.Pass {
			v.stats.Passed++
			continue
		}
		ok = false
		v.stats.Failed++
		if res.Err != nil {
			v.stats.Errors = append(v.stats.Errors, fmt.Sprintf("%s: %v", exp.Path, res.Err))
			v.logger.WithFields(logrus.Fields{
				"path": exp.Path,
			}).WithError(res.Err).Warn("Field check failed")
			continue
		}
		v.stats.Errors = append(v.stats.Errors,
			fmt.Sprintf("%s: want %v, got %v (tolerance %v)", exp.Path, exp.Want, res.Got, exp.Tolerance))
		v.logger.WithFields(logrus.Fields{
			"path":      exp.Path,
			"want":      exp.Want,
			"got":       res.Got,
			"tolerance": exp.Tolerance,
		}).Warn("Field outside tolerance")
	}
	return results, ok
}

// Stats returns a copy of the accumulated statistics.
func (v *Validator) Stats() Stats {
	s := v.stats
	s.Errors = append([]string(nil), v.stats.Errors...)
	return s
}

func check(rec *codec.Record, exp Expectation) FieldResult {
	res := FieldResult{Path: exp.Path, Want: exp.Want}
	got, err := Lookup(rec, exp.Path)
	if err != nil {
		res.Err = err
		return res
	}
	res.Got = got
	if exp.Circular {
		res.Pass = CompareAngles(exp.Want, got, exp.Tolerance)
	} else {
		res.Pass = Compare(exp.Want, got, exp.Tolerance)
	}
	return res
}

// Lookup resolves a slash path like "040/RHO" to a numeric field value
// of the record.
func Lookup(rec *codec.Record, path string) (float64, error) {
	parts := strings.Split(path, "/")
	val, ok := rec.Get(parts[0])
	if !ok {
		return 0, fmt.Errorf("item %s not present", parts[0])
	}
	for _, part := range parts[1:] {
		val, ok = val.Field(part)
		if !ok {
			return 0, fmt.Errorf("no member %s under %s", part, path)
		}
	}
	n, ok := val.Number()
	if !ok {
		return 0, fmt.Errorf("%s is not numeric", path)
	}
	return n, nil
}
