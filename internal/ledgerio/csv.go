// ==============================================================================
// LEDGER CSV CODEC - internal/ledgerio/csv.go
// ==============================================================================
package ledgerio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"

	"settleup/internal/domain"
	"settleup/internal/ledger"
	"settleup/pkg/errors"

	"github.com/shopspring/decimal"
)

var maxWeight = decimal.NewFromInt(math.MaxInt64)

// Codec converts between decimal amounts as people write them and integer
// minor units as the engine settles them.
type Codec struct {
	digits int32
}

// NewCodec returns a codec that keeps digits decimal places (2 turns 12.34
// into 1234 minor units).
func NewCodec(digits int32) *Codec {
	return &Codec{digits: digits}
}

// ParseAmount reads a decimal amount with either a point or a comma as the
// decimal separator. Amounts must be positive and exact in minor units.
func (c *Codec) ParseAmount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errors.ErrInvalidAmount, s)
	}
	return c.ToMinor(d)
}

// ToMinor scales d to minor units.
func (c *Codec) ToMinor(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: %s must be positive", errors.ErrInvalidAmount, d.String())
	}

	scaled := d.Shift(c.digits)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places", errors.ErrInvalidAmount, d.String(), c.digits)
	}
	if scaled.GreaterThan(maxWeight) {
		return 0, fmt.Errorf("%w: %s is too large", errors.ErrInvalidAmount, d.String())
	}
	return scaled.IntPart(), nil
}

// FromMinor converts minor units back to a decimal amount.
func (c *Codec) FromMinor(w int64) decimal.Decimal {
	return decimal.New(w, -c.digits)
}

// FormatAmount renders minor units with exactly the configured decimals.
func (c *Codec) FormatAmount(w int64) string {
	return c.FromMinor(w).StringFixed(c.digits)
}

// Load reads raw IOUs from CSV records "Giver,Receiver,Amount". The
// delimiter is ";" when the first line contains one and "," otherwise, an
// optional header row is skipped, and lines starting with "#" are ignored.
func (c *Codec) Load(r io.Reader) ([]ledger.Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []ledger.Entry
	for first := true; ; first = false {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrMalformedRecord, err)
		}

		line, _ := reader.FieldPos(0)
		if len(record) != 3 {
			return nil, fmt.Errorf("line %d: %w: want 3 fields, got %d", line, errors.ErrMalformedRecord, len(record))
		}
		if first && isHeader(record) {
			continue
		}

		amount, err := c.ParseAmount(record[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		entries = append(entries, ledger.Entry{
			Giver:    strings.TrimSpace(record[0]),
			Receiver: strings.TrimSpace(record[1]),
			Amount:   amount,
		})
	}

	return entries, nil
}

// WriteCSV writes settlement transfers as "Origin,Destination,Amount".
func (c *Codec) WriteCSV(w io.Writer, transfers []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Origin", "Destination", "Amount"}); err != nil {
		return err
	}
	for _, t := range transfers {
		if err := cw.Write([]string{t.Origin, t.Destination, c.FormatAmount(t.Weight)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func detectDelimiter(data []byte) rune {
	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}
	if bytes.IndexByte(firstLine, ';') >= 0 {
		return ';'
	}
	return ','
}

func isHeader(record []string) bool {
	return strings.EqualFold(strings.TrimSpace(record[0]), "giver") &&
		strings.EqualFold(strings.TrimSpace(record[2]), "amount")
}
