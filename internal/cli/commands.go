package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/logo"
	"invoicer/internal/pdf"
	"invoicer/internal/tui"
)

type totalsOutput struct {
	Invoice       core.InvoiceRecord `json:"invoice"`
	Totals        core.TotalsResult  `json:"totals"`
	AmountInWords string             `json:"amountInWords"`
}

func newTotalsCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "totals <invoice.json>",
		Short: "Print the totals of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readInvoice(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := opts.profile()
			if err != nil {
				return err
			}

			applied, totals := opts.calculator().Apply(rec)
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(totalsOutput{
					Invoice:       applied,
					Totals:        totals,
					AmountInWords: p.WordsFormat().Spell(totals.NetTotal),
				})
			}

			f := tui.Totals{Currency: p.CurrencyFormat(), Words: p.WordsFormat()}
			fmt.Fprint(cmd.OutOrStdout(), f.Render(applied, totals))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")
	return cmd
}

func newWordsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "words <amount>",
		Short: "Spell an amount in words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.profile()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.WordsFormat().Spell(core.ParseAmount(args[0])))
			return nil
		},
	}
}

func newRenderCmd(opts *globalOptions) *cobra.Command {
	var (
		outDir  string
		dateStr string
		noLogo  bool
	)

	cmd := &cobra.Command{
		Use:   "render <invoice.json>",
		Short: "Render an invoice to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readInvoice(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := opts.profile()
			if err != nil {
				return err
			}
			now, err := parseDay(dateStr, time.Now())
			if err != nil {
				return err
			}

			var resolver pdf.LogoResolver
			if !noLogo {
				sources, err := logo.SourcesFromProfile(p.Logo, &http.Client{Timeout: 10 * time.Second})
				if err != nil {
					return err
				}
				resolver = logo.NewResolver(applog.Default(applog.ComponentLogo), sources...)
			}

			renderer := NewRenderer(p, opts.calculator(), opts.rule(), resolver,
				pdf.WithClock(func() time.Time { return now }))
			doc, err := renderer.RenderRecord(cmd.Context(), rec)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(outDir, doc.FileName)
			if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d page(s))\n", path, doc.Pages)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	cmd.Flags().StringVar(&dateStr, "date", "", "generation date YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&noLogo, "no-logo", false, "skip the logo sources and draw the text badge")
	return cmd
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	var nowStr string

	cmd := &cobra.Command{
		Use:   "status <invoice.json>",
		Short: "Print the display status of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := readInvoice(cmd, args[0])
			if err != nil {
				return err
			}
			now, err := parseDay(nowStr, time.Now())
			if err != nil {
				return err
			}

			display := opts.rule().Derive(rec.PaymentStatus, rec.DueDate, now)
			var days *int
			if !rec.DueDate.IsEmpty() && display != core.DisplayPaid {
				d := core.DaysUntilDue(rec.DueDate, now)
				days = &d
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderStatus(rec.Number, display, days))
			return nil
		},
	}
	cmd.Flags().StringVar(&nowStr, "now", "", "evaluate as of YYYY-MM-DD (default: today)")
	return cmd
}

func parseDay(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d.Time, nil
}
