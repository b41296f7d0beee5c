package app

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"goasterix/internal/cat048"
	"goasterix/internal/codec"
	"goasterix/internal/export"
	"goasterix/internal/spec"
	"goasterix/internal/validate"
)

// Application represents the main application
type Application struct {
	config Config
	logger *logrus.Logger
}

// NewApplication creates a new application instance
func NewApplication(config Config) *Application {
	logger := logrus.New()
	if config.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Application{
		config: config,
		logger: logger,
	}
}

// Compile loads and compiles category definitions, reporting the layout
// of each one.
func (app *Application) Compile(paths []string) error {
	re, sp, err := app.readExpansions()
	if err != nil {
		return err
	}

	for _, path := range paths {
		cat, err := app.loadCategory(path, re, sp)
		if err != nil {
			return err
		}

		app.logger.WithFields(logrus.Fields{
			"category": cat.Number,
			"edition":  cat.Edition.String(),
			"title":    cat.Title,
			"items":    len(cat.Catalogue),
			"uap":      len(cat.UAP),
		}).Info("Compiled category definition")

		for _, item := range cat.Catalogue {
			app.logger.WithFields(logrus.Fields{
				"item":  item.Name,
				"title": item.Title,
			}).Debug("Data item")
		}
	}

	return nil
}

// Export compiles one category definition and writes its XML rendering.
func (app *Application) Export(path string) error {
	re, sp, err := app.readExpansions()
	if err != nil {
		return err
	}

	cat, err := app.loadCategory(path, re, sp)
	if err != nil {
		return err
	}

	out, err := export.XML(cat)
	if err != nil {
		return fmt.Errorf("failed to render category %d: %w", cat.Number, err)
	}

	if app.config.Output == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(app.config.Output, out, 0644); err != nil {
		return fmt.Errorf("failed to write XML: %w", err)
	}

	app.logger.WithFields(logrus.Fields{
		"category": cat.Number,
		"output":   app.config.Output,
		"bytes":    len(out),
	}).Info("Exported category definition")

	return nil
}

// Decode decodes hex-encoded data blocks and dumps their fields. With no
// arguments the hex text is read from stdin.
func (app *Application) Decode(args []string) error {
	reg, err := app.registry()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		args = strings.Fields(string(data))
	}

	for _, arg := range args {
		buf, err := hex.DecodeString(arg)
		if err != nil {
			return fmt.Errorf("invalid hex input %q: %w", arg, err)
		}

		blocks, decErr := codec.DecodeBlocks(reg, app.logger, app.config.Lenient, buf)
		app.dumpBlocks(blocks)
		if decErr != nil {
			return decErr
		}
	}

	return nil
}

// Validate encodes a reference CAT048 target report, decodes it back
// and checks the round trip against the default tolerances.
func (app *Application) Validate() error {
	cat, err := cat048.Category()
	if err != nil {
		return err
	}
	c := codec.New(cat, app.logger, app.config.Lenient)

	report := &cat048.TargetReport{
		SAC:       12,
		SIC:       34,
		TimeOfDay: floatPtr(36000.5),
		Position:  &cat048.PolarPosition{RangeMeters: 50000, AzimuthDeg: 135.0},
	}
	block, err := c.EncodeDataBlock(report.Fields())
	if err != nil {
		return fmt.Errorf("failed to encode reference report: %w", err)
	}
	decoded, _, err := c.DecodeDataBlock(block)
	if err != nil {
		return fmt.Errorf("failed to decode reference block: %w", err)
	}

	// Tolerances are defined in meters and seconds; RHO travels in
	// nautical miles, so the range bound converts to match.
	expectations := []validate.Expectation{
		{Path: "010/SAC", Want: 12},
		{Path: "010/SIC", Want: 34},
		{Path: "140", Want: 36000.5, Tolerance: validate.DefaultTimeToleranceS},
		{Path: "040/RHO", Want: 50000 / 1852.0, Tolerance: validate.DefaultRangeToleranceM / 1852.0},
		{Path: "040/THETA", Want: 135.0, Tolerance: validate.DefaultAzimuthToleranceDeg, Circular: true},
	}

	v := validate.New(app.logger)
	for _, rec := range decoded.Records {
		v.ValidateRecord(rec, expectations)
	}

	stats := v.Stats()
	app.logger.WithFields(logrus.Fields{
		"records":      stats.Records,
		"checked":      stats.Checked,
		"passed":       stats.Passed,
		"failed":       stats.Failed,
		"success_rate": stats.SuccessRate(),
	}).Info("Round-trip validation finished")

	if stats.Failed > 0 {
		return fmt.Errorf("round-trip validation failed %d of %d checks", stats.Failed, stats.Checked)
	}
	return nil
}

func floatPtr(v float64) *float64 { return &v }

// registry compiles the configured definitions, falling back to the
// built-in CAT048 when none are given.
func (app *Application) registry() (*spec.Registry, error) {
	if len(app.config.SpecFiles) == 0 {
		cat, err := cat048.Category()
		if err != nil {
			return nil, err
		}
		return spec.NewRegistry(cat)
	}

	re, sp, err := app.readExpansions()
	if err != nil {
		return nil, err
	}

	cats := make([]*spec.Category, 0, len(app.config.SpecFiles))
	for _, path := range app.config.SpecFiles {
		cat, err := app.loadCategory(path, re, sp)
		if err != nil {
			return nil, err
		}
		cats = append(cats, cat)
	}
	return spec.NewRegistry(cats...)
}

// readExpansions reads the configured RE and SP definition files.
func (app *Application) readExpansions() (re, sp []byte, err error) {
	if app.config.REFile != "" {
		if re, err = os.ReadFile(app.config.REFile); err != nil {
			return nil, nil, fmt.Errorf("failed to read RE definition: %w", err)
		}
	}
	if app.config.SPFile != "" {
		if sp, err = os.ReadFile(app.config.SPFile); err != nil {
			return nil, nil, fmt.Errorf("failed to read SP definition: %w", err)
		}
	}
	return re, sp, nil
}

func (app *Application) loadCategory(path string, re, sp []byte) (*spec.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category definition: %w", err)
	}
	cat, err := spec.ParseCategoryWithExpansions(data, re, sp)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", path, err)
	}
	return cat, nil
}

// dumpBlocks logs every decoded record field.
func (app *Application) dumpBlocks(blocks []*codec.DataBlock) {
	for _, blk := range blocks {
		app.logger.WithFields(logrus.Fields{
			"category": blk.Category,
			"length":   blk.Len,
			"records":  len(blk.Records),
		}).Info("Data block")

		for i, rec := range blk.Records {
			for _, f := range rec.Fields {
				app.logger.WithFields(logrus.Fields{
					"record": i,
					"frn":    f.FRN,
					"item":   f.Name,
					"value":  f.Value.String(),
				}).Info("Data item")
			}
		}
	}
}
