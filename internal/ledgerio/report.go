package ledgerio

import (
	"fmt"
	"io"
	"text/tabwriter"

	"settleup/internal/domain"
)

// Report prints one "{origin} ==> {destination} : {amount}" line per
// transfer.
func (c *Codec) Report(w io.Writer, transfers []domain.Transaction) error {
	for _, t := range transfers {
		if _, err := fmt.Fprintln(w, c.line(t)); err != nil {
			return err
		}
	}
	return nil
}

// Compare prints two settlements of the same ledger side by side, one
// transfer per row. The shorter column is padded with blanks.
func (c *Codec) Compare(w io.Writer, leftTitle string, left []domain.Transaction, rightTitle string, right []domain.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "%s (%d)\t| %s (%d)\n", leftTitle, len(left), rightTitle, len(right))
	for i := 0; i < max(len(left), len(right)); i++ {
		var l, r string
		if i < len(left) {
			l = c.line(left[i])
		}
		if i < len(right) {
			r = c.line(right[i])
		}
		fmt.Fprintf(tw, "%s\t| %s\n", l, r)
	}

	return tw.Flush()
}

func (c *Codec) line(t domain.Transaction) string {
	return fmt.Sprintf("%s ==> %s : %s", t.Origin, t.Destination, c.FormatAmount(t.Weight))
}
