package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/drfirst/rxinsight/internal/analytics"
	"github.com/drfirst/rxinsight/internal/config"
	"github.com/drfirst/rxinsight/internal/domain/record"
)

// Report names accepted by summarize.
const (
	ReportDashboard   = "dashboard"
	ReportSummary     = "summary"
	ReportMedications = "medications"
	ReportLabs        = "labs"
)

type summarizeOptions struct {
	Report string
	From   string
	To     string
	Labs   []string
}

func summarizeCmd() *cobra.Command {
	var opts summarizeOptions
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Compute a report from an exported JSON file without a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			usersFile, _ := cmd.Flags().GetString("users")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			records, err := readDocuments(file)
			if err != nil {
				return err
			}
			var users []record.Raw
			if usersFile != "" {
				if users, err = readDocuments(usersFile); err != nil {
					return err
				}
			}

			agg := analytics.NewAggregator(cfg.Analytics())
			out, err := summarize(agg, records, users, opts, time.Now().UTC())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().String("file", "", "JSON array of prescription documents")
	cmd.Flags().String("users", "", "JSON array of user documents (dashboard only)")
	cmd.Flags().StringVar(&opts.Report, "report", ReportDashboard, "dashboard, summary, medications or labs")
	cmd.Flags().StringVar(&opts.From, "from", "", "summary lower bound (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "summary upper bound (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&opts.Labs, "labs", nil, "lab names for the labs report")
	cmd.MarkFlagRequired("file")
	return cmd
}

func summarize(agg *analytics.Aggregator, raws, userRaws []record.Raw, opts summarizeOptions, now time.Time) (interface{}, error) {
	records := record.NormalizeAll(record.Dedup(raws, record.RawID))

	switch strings.ToLower(opts.Report) {
	case ReportDashboard:
		users := record.NormalizeUsers(record.Dedup(userRaws, record.RawID), agg.Config().DefaultClinic)
		return agg.Dashboard(records, users, now), nil
	case ReportSummary:
		from, err := analytics.ParseBound(opts.From, false)
		if err != nil {
			return nil, fmt.Errorf("invalid from: %w", err)
		}
		to, err := analytics.ParseBound(opts.To, true)
		if err != nil {
			return nil, fmt.Errorf("invalid to: %w", err)
		}
		if from != nil && to != nil && from.After(*to) {
			return nil, fmt.Errorf("from must not be after to")
		}
		return agg.Summary(records, from, to, now), nil
	case ReportMedications:
		return agg.MedicationStats(records), nil
	case ReportLabs:
		return agg.LabStats(records, opts.Labs), nil
	default:
		return nil, fmt.Errorf("unknown report %q", opts.Report)
	}
}

func readDocuments(path string) ([]record.Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []record.Raw
	if err := json.NewDecoder(f).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return docs, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
