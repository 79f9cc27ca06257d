package main

import (
	"fmt"

	"github.com/mmdatafocus/taxsales_validator/authcode"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <code>...",
	Short: "Print the fields packed in one or more authorization codes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, code := range args {
			d, err := authcode.Decode(code)
			if err != nil {
				fmt.Fprintf(out, "%s\n  error: %v\n", code, err)
				failed++
				continue
			}
			fmt.Fprintln(out, code)
			fmt.Fprintf(out, "  branch_office    %s\n", d.BranchOffice)
			fmt.Fprintf(out, "  modality         %s\n", d.Modality)
			fmt.Fprintf(out, "  emission_type    %s\n", d.EmissionType)
			fmt.Fprintf(out, "  invoice_type     %s\n", d.InvoiceType)
			fmt.Fprintf(out, "  sector           %s\n", d.Sector)
			fmt.Fprintf(out, "  sequence_number  %s\n", d.SequenceNumber)
			fmt.Fprintf(out, "  point_of_sale    %s\n", d.PointOfSale)
			fmt.Fprintf(out, "  check_digit      %s\n", d.CheckDigit)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d codes could not be decoded", failed, len(args))
		}
		return nil
	},
}
