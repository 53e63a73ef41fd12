package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/communitystats/statspipe/internal/report"
	"github.com/communitystats/statspipe/pkg/database"
	"github.com/communitystats/statspipe/pkg/logger"
)

var (
	reportOutput string
	reportXLSX   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the per-pipeline statistics report from the warehouse",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportOutput, "output", "data/stats.json", "JSON output path")
	reportCmd.Flags().StringVar(&reportXLSX, "xlsx", "", "also write a spreadsheet to this path")
}

func runReport(cmd *cobra.Command, args []string) error {
	if err := openWarehouse(); err != nil {
		return err
	}
	defer database.Close()

	svc := report.NewService(report.NewRepository(database.DB))
	reports, err := svc.Build(time.Now().UTC())
	if err != nil {
		return err
	}

	if err := report.WriteJSON(reports, reportOutput); err != nil {
		return err
	}
	logger.Infof("Report written to %s", reportOutput)

	if reportXLSX != "" {
		if err := report.WriteXLSX(reports, reportXLSX); err != nil {
			return err
		}
		logger.Infof("Spreadsheet written to %s", reportXLSX)
	}

	return nil
}
