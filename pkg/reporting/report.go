/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report.go
Description: HTML report generation for droidquery. Renders a device snapshot together with
stored state samples, query statistics, stored errors and recent crashes into a single page
with Chart.js charts.
*/

package reporting

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kleascm/droidquery/pkg/inventory"
	"github.com/kleascm/droidquery/pkg/mobile"
	"github.com/kleascm/droidquery/pkg/store"
	"github.com/sirupsen/logrus"
)

// ReportGenerator writes HTML reports into one directory
type ReportGenerator struct {
	outputDir string
	logger    logrus.FieldLogger
	templates *template.Template
}

// ReportData is everything a report shows. Only Snapshot is required.
type ReportData struct {
	Title       string              `json:"title"`
	GeneratedAt time.Time           `json:"generated_at"`
	Version     string              `json:"version"`
	Snapshot    *inventory.Snapshot `json:"snapshot"`
	Samples     []store.StateSample `json:"samples,omitempty"`
	Ops         []store.OpSummary   `json:"ops,omitempty"`
	Errors      []store.ErrorLog    `json:"errors,omitempty"`
	Crashes     []mobile.CrashEntry `json:"crashes,omitempty"`
	States      map[string]int      `json:"states"`
	Charts      *ChartData          `json:"charts"`
}

// ChartData contains the chart configurations of a report
type ChartData struct {
	StateChart *ChartConfig `json:"state_chart"`
	OpChart    *ChartConfig `json:"op_chart"`
}

// ChartConfig is a Chart.js configuration
type ChartConfig struct {
	Type    string      `json:"type"`
	Title   string      `json:"title"`
	Data    interface{} `json:"data"`
	Options interface{} `json:"options"`
}

var templateFuncs = template.FuncMap{
	"json": func(v interface{}) (template.JS, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return template.JS(data), nil
	},
	"ms": func(v float64) string {
		return fmt.Sprintf("%.1f ms", v)
	},
}

// NewReportGenerator creates a generator writing into outputDir
func NewReportGenerator(outputDir string, logger logrus.FieldLogger) *ReportGenerator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReportGenerator{
		outputDir: outputDir,
		logger:    logger,
		templates: template.Must(template.New("report").Funcs(templateFuncs).Parse(reportTemplate)),
	}
}

// GenerateReport renders data and returns the path of the written file
func (rg *ReportGenerator) GenerateReport(data *ReportData) (string, error) {
	if data.Snapshot == nil {
		return "", fmt.Errorf("report needs a snapshot")
	}
	if err := os.MkdirAll(rg.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if data.Title == "" {
		data.Title = "Device Report"
		if data.Snapshot.AppName != "" {
			data.Title = data.Snapshot.AppName
		}
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}
	rg.prepareChartData(data)

	name := fmt.Sprintf("report_%s_%s.html", data.Snapshot.CreatedAt.Format("2006-01-02_15-04-05"), shortID(data.Snapshot.ID))
	outputFile := filepath.Join(rg.outputDir, name)
	file, err := os.Create(outputFile)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := rg.templates.Execute(file, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	rg.logger.WithField("path", outputFile).Info("Report generated")
	return outputFile, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// prepareChartData counts sample states and builds the chart configurations
func (rg *ReportGenerator) prepareChartData(data *ReportData) {
	data.States = make(map[string]int)
	for _, s := range data.Samples {
		data.States[s.State()]++
	}
	data.Charts = &ChartData{
		StateChart: rg.createStateChart(data),
		OpChart:    rg.createOpChart(data),
	}
}

var stateColors = map[string]string{
	"foreground": "#4CAF50",
	"background": "#ff9800",
	"cached":     "#2196F3",
	"stopped":    "#f44336",
}

func (rg *ReportGenerator) createStateChart(data *ReportData) *ChartConfig {
	states := make([]string, 0, len(data.States))
	for s := range data.States {
		states = append(states, s)
	}
	sort.Strings(states)

	counts := make([]int, len(states))
	colors := make([]string, len(states))
	for i, s := range states {
		counts[i] = data.States[s]
		colors[i] = stateColors[s]
	}

	return &ChartConfig{
		Type:  "doughnut",
		Title: "Observed App State",
		Data: map[string]interface{}{
			"labels": states,
			"datasets": []map[string]interface{}{
				{
					"data":            counts,
					"backgroundColor": colors,
				},
			},
		},
		Options: map[string]interface{}{
			"responsive": true,
		},
	}
}

func (rg *ReportGenerator) createOpChart(data *ReportData) *ChartConfig {
	labels := make([]string, len(data.Ops))
	calls := make([]int64, len(data.Ops))
	failures := make([]int64, len(data.Ops))
	for i, op := range data.Ops {
		labels[i] = op.Op
		calls[i] = op.Calls
		failures[i] = op.Failures
	}

	return &ChartConfig{
		Type:  "bar",
		Title: "Queries by Operation",
		Data: map[string]interface{}{
			"labels": labels,
			"datasets": []map[string]interface{}{
				{
					"label":           "Calls",
					"data":            calls,
					"backgroundColor": "rgba(75, 192, 192, 0.6)",
				},
				{
					"label":           "Failures",
					"data":            failures,
					"backgroundColor": "rgba(255, 99, 132, 0.6)",
				},
			},
		},
		Options: map[string]interface{}{
			"responsive": true,
			"scales": map[string]interface{}{
				"y": map[string]interface{}{
					"beginAtZero": true,
				},
			},
		},
	}
}
