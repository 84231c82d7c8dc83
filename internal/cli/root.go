package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"invoicer/internal/core"
	"invoicer/internal/profile"
)

var (
	version = "dev"
	commit  = "none"
)

// globalOptions are the flags every invoicectl command shares.
type globalOptions struct {
	profilePath string
	dueSoonDays int
	floorZero   bool
}

func (o *globalOptions) profile() (profile.Profile, error) {
	p, err := profile.Load(o.profilePath)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("loading profile: %w", err)
	}
	return p, nil
}

func (o *globalOptions) calculator() core.Calculator {
	return core.NewCalculator(core.TotalsPolicy{FloorNetTotalAtZero: o.floorZero})
}

func (o *globalOptions) rule() core.StatusRule {
	return core.StatusRule{DueSoonDays: o.dueSoonDays}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Compute, spell and render invoices offline",
		Long:          "invoicectl works on invoice JSON files without a server: it prints totals, spells amounts and renders PDFs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.profilePath, "profile", os.Getenv("COMPANY_PROFILE"), "company profile YAML (default: built-in profile)")
	cmd.PersistentFlags().IntVar(&opts.dueSoonDays, "due-soon-days", core.DefaultDueSoonDays, "days before the due date an invoice counts as due soon")
	cmd.PersistentFlags().BoolVar(&opts.floorZero, "floor-net-total", false, "clamp a negative net total to zero")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newTotalsCmd(opts))
	cmd.AddCommand(newWordsCmd(opts))
	cmd.AddCommand(newRenderCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	return cmd
}

// NewRootCmdForTest returns the root command for testing.
func NewRootCmdForTest() *cobra.Command {
	return newRootCmd()
}

func Execute() error {
	cmd := newRootCmd()
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show invoicectl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "invoicectl %s (%s)\n", version, commit)
			return nil
		},
	}
}

// readInvoice decodes an invoice JSON file; "-" reads stdin.
func readInvoice(cmd *cobra.Command, path string) (core.InvoiceRecord, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return core.InvoiceRecord{}, err
		}
		defer f.Close()
		r = f
	}

	var rec core.InvoiceRecord
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return core.InvoiceRecord{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return core.Normalize(rec), nil
}
