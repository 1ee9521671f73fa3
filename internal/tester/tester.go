// Package tester runs connectors outside the sync service and prints what they download.
package tester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Slithercze/everytrade-plugins/internal/connector"
	"github.com/Slithercze/everytrade-plugins/internal/domain"
	"github.com/Slithercze/everytrade-plugins/internal/ports"
	"github.com/Slithercze/everytrade-plugins/internal/report"
	"github.com/Slithercze/everytrade-plugins/internal/utils"
)

const (
	propertiesExt = ".properties"
	// key=value files; viper's dotenv codec reads and writes them
	propertiesType = "env"
)

// TemplatePath returns the template file path of a descriptor.
func TemplatePath(dir, descriptorID string) string {
	return filepath.Join(dir, descriptorID+propertiesExt)
}

// WriteTemplates writes one parameter template per descriptor into dir.
// Each template maps parameter ids to their labels.
func WriteTemplates(dir string, descriptors []connector.Descriptor) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create template directory %s: %w", dir, err)
	}
	for _, d := range descriptors {
		if len(d.Parameters) == 0 {
			continue
		}
		v := viper.New()
		v.SetConfigType(propertiesType)
		for _, p := range d.Parameters {
			v.Set(p.ID, p.Description)
		}
		if err := writeTemplate(v, TemplatePath(dir, d.ID)); err != nil {
			return err
		}
	}
	return nil
}

// writeTemplate encodes with the configured type; WriteConfigAs would pick the codec from the extension.
func writeTemplate(v *viper.Viper, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create template %s: %w", path, err)
	}
	if err := v.WriteConfigTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write template %s: %w", path, err)
	}
	return f.Close()
}

// LoadParameters reads <dir>/<descriptor id>.properties. The boolean is false
// when the file does not exist.
func LoadParameters(dir string, d connector.Descriptor) (map[string]string, bool, error) {
	path := TemplatePath(dir, d.ID)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(propertiesType)
	if err := v.ReadInConfig(); err != nil {
		return nil, false, fmt.Errorf("read parameters %s: %w", path, err)
	}

	params := make(map[string]string, len(d.Parameters))
	for _, p := range d.Parameters {
		// viper keys are case-insensitive
		if value := strings.TrimSpace(v.GetString(p.ID)); value != "" {
			params[p.ID] = value
		}
	}
	return params, true, nil
}

// Tester downloads twice with every configured connector: once from scratch
// and once from the returned cursor.
type Tester struct {
	Registry *connector.Registry
	Env      connector.Environment
	Out      io.Writer
	OutDir   string // optional, receives one CSV per download
	Logger   ports.Logger
}

// RunAll tests every descriptor that has a parameter file in paramsDir.
// Descriptors without one are skipped. Errors of one connector do not stop the others.
func (t *Tester) RunAll(ctx context.Context, paramsDir string) error {
	var errs []error
	for _, d := range t.Registry.Descriptors() {
		params, ok, err := LoadParameters(paramsDir, d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			t.Logger.Info(ctx, "No parameters found, skipping connector", map[string]interface{}{"connector": d.ID})
			continue
		}
		if err := t.Run(ctx, d, params); err != nil {
			t.Logger.Error(ctx, err, "Connector test failed", map[string]interface{}{"connector": d.ID})
			errs = append(errs, fmt.Errorf("%s: %w", d.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Run tests one connector.
func (t *Tester) Run(ctx context.Context, d connector.Descriptor, params map[string]string) error {
	conn, err := t.Registry.Create(d.ID, "", params, t.Env)
	if err != nil {
		return err
	}

	first, err := conn.Download(ctx, "")
	if err != nil {
		return fmt.Errorf("first download: %w", err)
	}
	if err := t.print(d.ID, 1, first); err != nil {
		return err
	}

	second, err := conn.Download(ctx, first.LastDownloadedID)
	if err != nil {
		return fmt.Errorf("follow-up download: %w", err)
	}
	return t.print(d.ID, 2, second)
}

func (t *Tester) print(descriptorID string, n int, result *domain.DownloadResult) error {
	fmt.Fprintf(t.Out, "=== %s download #%d ===\n", descriptorID, n)
	if err := utils.WriteClustersCSV(t.Out, result.Clusters); err != nil {
		return err
	}

	summary := report.Summarize(result.ParseResult)
	fmt.Fprintf(t.Out, "rows: %d, clusters: %d, related: %d, errors: %d\n",
		summary.Rows, summary.Clusters, summary.RelatedTransactions, summary.ConversionErrors)
	fmt.Fprintf(t.Out, "fee ignored: %d, fee failed: %d\n", summary.ClustersWithIgnoredFee, summary.ClustersWithFailedFee)
	for _, code := range report.SortedCurrencies(summary.FeeTotals) {
		fmt.Fprintf(t.Out, "fee total %s: %s\n", code, summary.FeeTotals[code].String())
	}
	for _, e := range result.Errors {
		fmt.Fprintf(t.Out, "%s: %s (%s)\n", e.Kind, e.Message, e.Row)
	}
	fmt.Fprintf(t.Out, "last downloaded id: %s\n", result.LastDownloadedID)

	if t.OutDir == "" {
		return nil
	}
	path := filepath.Join(t.OutDir, fmt.Sprintf("%s-%d.csv", descriptorID, n))
	if err := utils.WriteClustersCSVFile(path, result.Clusters); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
