package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"go-fintrack/internal/analytics"
	"go-fintrack/internal/model"
	"go-fintrack/internal/validation"
)

const dateLayout = "2006-01-02"

type filterFlags struct {
	types        []string
	categoryIDs  []int64
	paymentModes []string
	from, to     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "expense or income (repeatable)")
	cmd.Flags().Int64SliceVar(&f.categoryIDs, "category", nil, "category id (repeatable)")
	cmd.Flags().StringSliceVar(&f.paymentModes, "payment-mode", nil, "payment mode (repeatable)")
	cmd.Flags().StringVar(&f.from, "from", "", "start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "end date, YYYY-MM-DD")
}

func (f *filterFlags) filter() (model.TransactionFilter, error) {
	filter := model.TransactionFilter{
		Types:        f.types,
		CategoryIDs:  f.categoryIDs,
		PaymentModes: f.paymentModes,
	}

	if f.from != "" {
		start, err := model.ParseTimestamp(f.from)
		if err != nil {
			return filter, validation.Field("start_date", "Invalid start date")
		}
		filter.StartDate = &start.Time
	}
	if f.to != "" {
		end, err := model.ParseTimestamp(f.to)
		if err != nil {
			return filter, validation.Field("end_date", "Invalid end date")
		}
		// A bare date covers the whole day.
		if len(f.to) == len(dateLayout) {
			end.Time = end.Add(24*time.Hour - time.Second)
		}
		filter.EndDate = &end.Time
	}

	return filter, nil
}

func (a *cliApp) txCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "List and edit transactions",
	}

	cmd.AddCommand(a.txListCommand(), a.txAddCommand(), a.txUpdateCommand(), a.txDeleteCommand())
	return cmd
}

func (a *cliApp) txListCommand() *cobra.Command {
	var (
		flags         filterFlags
		page, perPage int
		all, asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}

			filter, err := flags.filter()
			if err != nil {
				return err
			}
			filter.PerPage = perPage
			out := cmd.OutOrStdout()

			if all {
				txs, err := a.env.Expenses.All(ctx, filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, txs)
				}
				return writeTransactions(out, txs)
			}

			filter.Page = page
			result, err := a.env.Expenses.List(ctx, filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, result)
			}
			if err := writeTransactions(out, result.Expenses); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nPage %d of %d (%d transactions)\n", result.Page, result.Pages, result.Total)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&perPage, "per-page", 15, "transactions per page")
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

type txFlags struct {
	txType      string
	amount      float64
	description string
	categoryID  int64
	paymentMode string
	date        string
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.txType, "type", "", "expense or income")
	cmd.Flags().Float64Var(&f.amount, "amount", 0, "amount, greater than zero")
	cmd.Flags().StringVar(&f.description, "description", "", "free text")
	cmd.Flags().Int64Var(&f.categoryID, "category-id", 0, "category id, 0 for none")
	cmd.Flags().StringVar(&f.paymentMode, "payment-mode", "", "cash, debit_card, credit_card, upi or net_banking")
	cmd.Flags().StringVar(&f.date, "date", "", "date, YYYY-MM-DD or RFC 3339")
}

// input copies the flags the user actually set.
func (f *txFlags) input(cmd *cobra.Command) (model.TransactionInput, error) {
	var in model.TransactionInput
	changed := cmd.Flags().Changed

	if changed("type") {
		in.Type = f.txType
	}
	if changed("amount") {
		in.Amount = f.amount
	}
	if changed("description") {
		in.Description = f.description
	}
	if changed("category-id") {
		id := f.categoryID
		in.CategoryID = &id
	}
	if changed("payment-mode") {
		in.PaymentMode = f.paymentMode
	}
	if changed("date") {
		ts, err := model.ParseTimestamp(f.date)
		if err != nil {
			return in, validation.Field("date", "Invalid date")
		}
		in.Date = &ts
	}

	return in, nil
}

func (a *cliApp) txAddCommand() *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}

			in, err := flags.input(cmd)
			if err != nil {
				return err
			}

			tx, err := a.env.Expenses.Add(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added transaction %d.\n", tx.ID)
			return nil
		},
	}

	flags.register(cmd)
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *cliApp) txUpdateCommand() *cobra.Command {
	var flags txFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in, err := flags.input(cmd)
			if err != nil {
				return err
			}

			tx, err := a.env.Expenses.Update(ctx, id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated transaction %d.\n", tx.ID)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func (a *cliApp) txDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.env.Expenses.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted transaction %d.\n", id)
			return nil
		},
	}
}

func (a *cliApp) categoriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List and add categories",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List default and custom categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}

			cats, err := a.env.Expenses.Categories(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, cats)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tDEFAULT")
			for _, c := range cats {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", c.ID, c.Name, c.Type, c.IsDefault)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	var in model.CategoryInput
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a custom category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}

			in.Name = args[0]
			cat, err := a.env.Expenses.AddCategory(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s category %q (id %d).\n", cat.Type, cat.Name, cat.ID)
			return nil
		},
	}
	add.Flags().StringVar(&in.Type, "type", model.TypeExpense, "expense or income")

	cmd.AddCommand(list, add)
	return cmd
}

func (a *cliApp) summaryCommand() *cobra.Command {
	var (
		flags  filterFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Totals by category and month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := a.signedIn(ctx); err != nil {
				return err
			}

			filter, err := flags.filter()
			if err != nil {
				return err
			}
			filter.PerPage = 100

			txs, err := a.env.Expenses.All(ctx, filter)
			if err != nil {
				return err
			}
			cats, err := a.env.Expenses.Categories(ctx)
			if err != nil {
				return err
			}

			report := analytics.Build(txs, cats)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return writeReport(cmd.OutOrStdout(), report)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeTransactions(out io.Writer, txs []model.Transaction) error {
	if len(txs) == 0 {
		fmt.Fprintln(out, "No transactions.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tCATEGORY\tPAYMENT\tDESCRIPTION")
	for _, tx := range txs {
		category := tx.Category
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			tx.ID, tx.Date.UTC().Format(dateLayout), tx.Type, tx.Amount, category, tx.PaymentMode, tx.Description)
	}
	return tw.Flush()
}

func writeReport(out io.Writer, r analytics.Report) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Income\t%.2f\n", r.Summary.TotalIncome)
	fmt.Fprintf(tw, "Expenses\t%.2f\n", r.Summary.TotalExpenses)
	fmt.Fprintf(tw, "Net\t%.2f\n", r.Summary.NetAmount)
	fmt.Fprintf(tw, "Transactions\t%d\n", r.Summary.TransactionCount)

	if len(r.Combined) > 0 {
		fmt.Fprintln(tw, "\nCATEGORY\tEXPENSE\tINCOME")
		for _, row := range r.Combined {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", row.Category, row.Expense, row.Income)
		}
	}

	if len(r.Monthly) > 0 {
		fmt.Fprintln(tw, "\nMONTH\tEXPENSE\tINCOME")
		for _, row := range r.Monthly {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", row.Month, row.Expense, row.Income)
		}
	}

	return tw.Flush()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, validation.Field("id", "Transaction id must be a positive number")
	}
	return id, nil
}
