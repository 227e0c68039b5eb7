// triage-export scores a JSON dump of reports and writes the triage workbook.
//
// Usage:
//
//	go run ./cmd/triage-export --in reports.json --out triage.xlsx [--upload]
//
// --upload also copies the workbook to GCS_BUCKET.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/models/reports"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
)

func main() {
	in := flag.String("in", "", "Required: JSON file with an array of reports")
	out := flag.String("out", "triage.xlsx", "Output workbook path")
	upload := flag.Bool("upload", false, "Also upload the workbook to GCS_BUCKET")
	flag.Parse()

	if strings.TrimSpace(*in) == "" {
		fmt.Fprintln(os.Stderr, "--in is required")
		os.Exit(1)
	}
	raw, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *in, err)
		os.Exit(1)
	}
	all, err := loadReports(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse reports: %v\n", err)
		os.Exit(1)
	}

	stats := models.ComputeStatistics(all, time.Now())
	data, err := reports.TriageWorkbookBytes(models.BuildTriageQueue(all, models.TriageFilter{}), &stats)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build workbook: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d reports to %s\n", len(all), *out)

	if *upload {
		uri, err := utils.UploadBytesToGCS(context.Background(), "exports/"+filepath.Base(*out), data, utils.ContentTypeXLSX)
		if err != nil {
			fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(uri)
	}
}

// loadReports decodes the dump and drops null elements.
func loadReports(raw []byte) ([]*models.Report, error) {
	var decoded []*models.Report
	if err := utils.UnmarshalFromJSON(raw, &decoded); err != nil {
		return nil, err
	}
	all := make([]*models.Report, 0, len(decoded))
	for _, r := range decoded {
		if r != nil {
			all = append(all, r)
		}
	}
	return all, nil
}
