package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agencyops/agencyops/internal/metrics"
	"github.com/agencyops/agencyops/internal/metrics/export"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Compute company metrics",
}

// -- metrics period --

var metricsPeriodCmd = &cobra.Command{
	Use:   "period",
	Short: "Aggregate revenue, costs and capacity over a date range",
	RunE: func(cmd *cobra.Command, _ []string) error {
		companyID, err := companyFlag(cmd)
		if err != nil {
			return err
		}
		startRaw, _ := cmd.Flags().GetString("start")
		endRaw, _ := cmd.Flags().GetString("end")
		agg, _ := cmd.Flags().GetString("aggregation")
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		if err := checkFormat(format, formatText, formatJSON, formatCSV, formatXLSX); err != nil {
			return err
		}
		start, err := time.Parse(time.DateOnly, startRaw)
		if err != nil {
			return fmt.Errorf("--start must be YYYY-MM-DD, got %q", startRaw)
		}
		end, err := time.Parse(time.DateOnly, endRaw)
		if err != nil {
			return fmt.Errorf("--end must be YYYY-MM-DD, got %q", endRaw)
		}

		return withBackend(cmd, func(b *backend) error {
			out, err := b.metrics.GetPeriodMetrics(cmd.Context(), metrics.PeriodFilter{
				CompanyID:   companyID,
				Start:       start,
				End:         end,
				Aggregation: metrics.Aggregation(agg),
			})
			if err != nil {
				return eris.Wrap(err, "metrics period")
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return eris.Wrapf(err, "metrics period: create %s", outPath)
				}
				defer f.Close() //nolint:errcheck
				w = f
			}
			switch format {
			case formatJSON:
				return writeJSON(w, out)
			case formatCSV:
				return export.WritePeriodCSV(w, out)
			case formatXLSX:
				return export.WritePeriodXLSX(w, out)
			default:
				return renderPeriod(w, out)
			}
		})
	},
}

func renderPeriod(w io.Writer, m metrics.PeriodMetrics) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Company\t%s\n", m.CompanyID)
	fmt.Fprintf(tw, "Period\t%s .. %s (%s, %d months)\n", m.Period.Start.Format(time.DateOnly), m.Period.End.Format(time.DateOnly), m.Period.Aggregation, m.Months)
	fmt.Fprintf(tw, "Ledger\t%s\n", m.LedgerSource)
	fmt.Fprintf(tw, "Revenue\t%s\tbooked %s / forecast %s\n", amount(m.Revenue), amount(m.BookedRevenue), amount(m.ForecastRevenue))
	fmt.Fprintf(tw, "Costs\t%s\tpayroll %s / contractor %s / other %s\n", amount(m.Costs), amount(m.PayrollCosts), amount(m.ContractorCosts), amount(m.OtherCosts))
	fmt.Fprintf(tw, "Profit\t%s\tmargin %s\n", amount(m.Profit), percent(m.ProfitMargin))
	fmt.Fprintf(tw, "Capacity\t%s h\tallocated %s h, utilization %s\n", amount(m.Capacity), amount(m.AllocatedHours), percent(m.UtilizationRate))
	fmt.Fprintf(tw, "Projects\t%d\tavg value %s\n", m.ProjectCount, amount(m.AvgProjectValue))
	if len(m.Series) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "BUCKET\tREVENUE\tCOSTS\tPROFIT\tCAPACITY\tUTILIZATION")
		for _, p := range m.Series {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.Label, amount(p.Revenue), amount(p.Costs), amount(p.Profit), amount(p.Capacity), percent(p.UtilizationRate))
		}
	}
	return tw.Flush()
}

// -- metrics month --

type monthReport struct {
	Revenue  *metrics.RevenueBreakdown  `json:"revenue,omitempty"`
	Costs    *metrics.CostBreakdown     `json:"costs,omitempty"`
	Capacity *metrics.CapacityBreakdown `json:"capacity,omitempty"`
}

var metricsMonthCmd = &cobra.Command{
	Use:   "month",
	Short: "Show the revenue, cost and capacity breakdown of one month",
	RunE: func(cmd *cobra.Command, _ []string) error {
		companyID, err := companyFlag(cmd)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		year, _ := cmd.Flags().GetInt("year")
		month, _ := cmd.Flags().GetInt("month")
		if year == 0 {
			year = now.Year()
		}
		if month == 0 {
			month = int(now.Month())
		}
		kind, _ := cmd.Flags().GetString("kind")
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format, formatText, formatJSON); err != nil {
			return err
		}
		if kind != "all" && kind != "revenue" && kind != "costs" && kind != "capacity" {
			return fmt.Errorf("--kind must be all, revenue, costs or capacity, got %q", kind)
		}

		return withBackend(cmd, func(b *backend) error {
			var report monthReport
			g, ctx := errgroup.WithContext(cmd.Context())
			if kind == "all" || kind == "revenue" {
				g.Go(func() error {
					out, err := b.metrics.GetMonthlyRevenue(ctx, companyID, year, month)
					report.Revenue = &out
					return err
				})
			}
			if kind == "all" || kind == "costs" {
				g.Go(func() error {
					out, err := b.metrics.GetMonthlyCosts(ctx, companyID, year, month)
					report.Costs = &out
					return err
				})
			}
			if kind == "all" || kind == "capacity" {
				g.Go(func() error {
					out, err := b.metrics.GetMonthlyCapacity(ctx, companyID, year, month)
					report.Capacity = &out
					return err
				})
			}
			if err := g.Wait(); err != nil {
				return eris.Wrap(err, "metrics month")
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return renderMonth(cmd.OutOrStdout(), year, month, report)
		})
	},
}

func renderMonth(w io.Writer, year, month int, r monthReport) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Month\t%04d-%02d\n", year, month)
	if r.Revenue != nil {
		fmt.Fprintf(tw, "Revenue\t%s\tbooked %s / forecast %s (%s)\n", amount(r.Revenue.Total), amount(r.Revenue.Booked), amount(r.Revenue.Forecast), r.Revenue.Source)
	}
	if r.Costs != nil {
		fmt.Fprintf(tw, "Costs\t%s\tpayroll %s / contractor %s / other %s (%s)\n", amount(r.Costs.Total), amount(r.Costs.Payroll), amount(r.Costs.Contractor), amount(r.Costs.Other), r.Costs.Ledger)
	}
	if r.Capacity != nil {
		fmt.Fprintf(tw, "Capacity\t%s h\tallocated %s h, utilization %s, %d staff\n", amount(r.Capacity.CapacityHours), amount(r.Capacity.AllocatedHours), percent(r.Capacity.UtilizationRate), r.Capacity.ActiveStaff)
	}
	return tw.Flush()
}

// -- metrics chart --

var metricsChartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Print the twelve month revenue and expense series of a year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		companyID, err := companyFlag(cmd)
		if err != nil {
			return err
		}
		year, _ := cmd.Flags().GetInt("year")
		if year == 0 {
			year = time.Now().UTC().Year()
		}
		format, _ := cmd.Flags().GetString("format")
		if err := checkFormat(format, formatText, formatJSON); err != nil {
			return err
		}

		return withBackend(cmd, func(b *backend) error {
			chart, err := b.metrics.GetRevenueChart(cmd.Context(), companyID, year)
			if err != nil {
				return eris.Wrap(err, "metrics chart")
			}
			if format == formatJSON {
				return writeJSON(cmd.OutOrStdout(), chart)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "MONTH\tBOOKED\tFORECAST\tCOMBINED\tEXPENSES")
			for i, label := range chart.Months {
				if i >= len(chart.Combined) || i >= len(chart.Expenses) {
					break
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", label, amount(chart.Booked[i]), amount(chart.Forecast[i]), amount(chart.Combined[i]), amount(chart.Expenses[i]))
			}
			return tw.Flush()
		})
	},
}

func init() {
	metricsCmd.AddCommand(metricsPeriodCmd, metricsMonthCmd, metricsChartCmd)

	for _, c := range []*cobra.Command{metricsPeriodCmd, metricsMonthCmd, metricsChartCmd} {
		c.Flags().String("company", "", "company UUID")
		_ = c.MarkFlagRequired("company")
		c.Flags().String("format", formatText, "output format")
	}

	metricsPeriodCmd.Flags().String("start", "", "first day, YYYY-MM-DD")
	metricsPeriodCmd.Flags().String("end", "", "last day, YYYY-MM-DD")
	_ = metricsPeriodCmd.MarkFlagRequired("start")
	_ = metricsPeriodCmd.MarkFlagRequired("end")
	metricsPeriodCmd.Flags().String("aggregation", string(metrics.AggregateMonthly), "series bucket: monthly, quarterly or yearly")
	metricsPeriodCmd.Flags().String("out", "", "write to this file instead of stdout")

	metricsMonthCmd.Flags().Int("year", 0, "calendar year (default current)")
	metricsMonthCmd.Flags().Int("month", 0, "month 1-12 (default current)")
	metricsMonthCmd.Flags().String("kind", "all", "all, revenue, costs or capacity")

	metricsChartCmd.Flags().Int("year", 0, "calendar year (default current)")
}
