package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mymoney/internal/backend"
	"mymoney/internal/core"
	"mymoney/internal/services"
)

func newProjectCommand(a *app) *cobra.Command {
	var (
		period periodFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Show actual and predicted totals for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, month, err := period.resolve(a.now())
			if err != nil {
				return err
			}
			return a.withEngine(cmd.Context(), func(_ *backend.BackendResult, engine *services.Engine) error {
				summary, err := engine.Projector.Summarize(cmd.Context(), period.owner, year, month)
				if err != nil {
					return err
				}
				if asJSON {
					return writeProjectionJSON(cmd.OutOrStdout(), summary)
				}
				return writeProjection(cmd.OutOrStdout(), summary)
			})
		},
	}
	period.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the projection as JSON")
	return cmd
}

func newConsolidateCommand(a *app) *cobra.Command {
	var (
		period periodFlags
		ruleID int64
	)
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Materialize one occurrence of a recurrence rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, month, err := period.resolve(a.now())
			if err != nil {
				return err
			}
			return a.withEngine(cmd.Context(), func(res *backend.BackendResult, engine *services.Engine) error {
				rule, err := res.Store.GetRule(cmd.Context(), period.owner, ruleID)
				if err != nil {
					return err
				}
				tx, err := engine.Consolidator.Consolidate(cmd.Context(), rule, year, month)
				if errors.Is(err, services.ErrNotApplicable) {
					fmt.Fprintf(cmd.OutOrStdout(), "rule %d: nothing to consolidate for %04d-%02d\n", ruleID, year, month)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created transaction %d: %s %s %s on %s\n",
					tx.ID, tx.Kind, core.FormatAmount(tx.Amount), tx.Description, tx.Date)
				return nil
			})
		},
	}
	period.bind(cmd)
	cmd.Flags().Int64Var(&ruleID, "rule", 0, "recurrence rule id (required)")
	_ = cmd.MarkFlagRequired("rule")
	return cmd
}

func newGenerateCommand(a *app) *cobra.Command {
	var (
		period periodFlags
		async  bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Consolidate every active rule of an owner for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, month, err := period.resolve(a.now())
			if err != nil {
				return err
			}
			return a.withEngine(cmd.Context(), func(res *backend.BackendResult, engine *services.Engine) error {
				out := cmd.OutOrStdout()
				if async {
					if res.AMQP == nil {
						return errors.New("asynchronous generation requires a reachable AMQP broker")
					}
					if err := res.AMQP.PublishGenerateRequest(cmd.Context(), period.owner, year, month); err != nil {
						return err
					}
					fmt.Fprintf(out, "queued generation for owner %d, %04d-%02d\n", period.owner, year, month)
					return nil
				}

				report, err := engine.Processor.GenerateReport(cmd.Context(), period.owner, year, month)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "created %d, skipped %d, failed %d\n",
					len(report.Created), len(report.Skipped), len(report.Failed))
				if len(report.Failed) > 0 {
					return fmt.Errorf("%d rules failed to consolidate: %v", len(report.Failed), report.Failed)
				}
				return nil
			})
		},
	}
	period.bind(cmd)
	cmd.Flags().BoolVar(&async, "async", false, "queue the generation on the message bus")
	return cmd
}

func writeProjection(w io.Writer, p core.MonthProjection) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Projection for owner %d, %04d-%02d\n\n", p.Owner, p.Year, p.Month)
	fmt.Fprintln(tw, "\tactual\tpredicted\tprojected")
	for _, side := range []struct {
		name string
		k    core.KindProjection
	}{{"income", p.Income}, {"expense", p.Expense}} {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", side.name,
			core.FormatAmount(side.k.ActualTotal),
			core.FormatAmount(side.k.PredictedTotal),
			core.FormatAmount(side.k.ProjectedTotal))
	}
	fmt.Fprintf(tw, "balance\t\t\t%s\n", core.FormatAmount(p.Balance()))

	pending := append(append([]core.PredictedOccurrence(nil), p.Income.Predicted...), p.Expense.Predicted...)
	if len(pending) > 0 {
		fmt.Fprintln(tw, "\nPending occurrences")
		for _, occ := range pending {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", occ.Date, occ.Kind, core.FormatAmount(occ.Amount), occ.Description)
		}
	}
	return tw.Flush()
}

type occurrenceJSON struct {
	RuleID      int64     `json:"rule_id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Date        core.Date `json:"date"`
}

type sideJSON struct {
	Actual    string           `json:"actual_total"`
	Predicted string           `json:"predicted_total"`
	Projected string           `json:"projected_total"`
	Pending   []occurrenceJSON `json:"predicted"`
}

func toSideJSON(k core.KindProjection) sideJSON {
	side := sideJSON{
		Actual:    core.FormatAmount(k.ActualTotal),
		Predicted: core.FormatAmount(k.PredictedTotal),
		Projected: core.FormatAmount(k.ProjectedTotal),
		Pending:   make([]occurrenceJSON, 0, len(k.Predicted)),
	}
	for _, occ := range k.Predicted {
		side.Pending = append(side.Pending, occurrenceJSON{
			RuleID:      occ.RuleID,
			Description: occ.Description,
			Amount:      core.FormatAmount(occ.Amount),
			Date:        occ.Date,
		})
	}
	return side
}

func writeProjectionJSON(w io.Writer, p core.MonthProjection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Owner   int64    `json:"owner_id"`
		Year    int      `json:"year"`
		Month   int      `json:"month"`
		Income  sideJSON `json:"income"`
		Expense sideJSON `json:"expense"`
		Balance string   `json:"balance"`
	}{p.Owner, p.Year, p.Month, toSideJSON(p.Income), toSideJSON(p.Expense), core.FormatAmount(p.Balance())})
}
