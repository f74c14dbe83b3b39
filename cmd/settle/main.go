// ==============================================================================
// SETTLEMENT CLI - cmd/settle/main.go
// ==============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"settleup/internal/domain"
	"settleup/internal/ledger"
	"settleup/internal/ledgerio"
	"settleup/internal/settlement"
	"settleup/pkg/config"
	"settleup/pkg/errors"
	"settleup/pkg/logger"
)

func main() {
	in := flag.String("in", "", "CSV file of Giver,Receiver,Amount records (\"-\" for stdin)")
	out := flag.String("out", "", "write the settlement as CSV to this file")
	strategy := flag.String("strategy", "best", "best|largest|subset-largest|subset-closest|closest")
	compare := flag.Bool("compare", false, "print every strategy's result next to the chosen one")
	flag.Parse()

	cfg := config.Load()
	log := logger.NewWithWriter("settle", os.Stderr, logger.ParseLevel(cfg.Log.Level))

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	kind, ok := domain.ParseStrategy(*strategy)
	if !ok {
		log.Fatal("Unknown strategy", map[string]interface{}{"strategy": *strategy})
	}

	codec := ledgerio.NewCodec(cfg.Settlement.MinorUnitDigits)
	entries, err := load(codec, *in)
	if err != nil {
		log.Fatal("Failed to read ledger", map[string]interface{}{"file": *in, "error": err.Error()})
	}

	raw, err := ledger.New(ledgerName(*in), entries)
	if err != nil {
		log.Fatal("Invalid ledger", map[string]interface{}{"file": *in, "error": err.Error()})
	}
	reduced := ledger.Reduce(raw)
	if err := ledger.CheckConservation(reduced, raw); err != nil {
		log.Fatal("Balance reduction broke conservation", map[string]interface{}{"error": err.Error()})
	}

	opts := settlement.Options{
		Subset: settlement.SubsetLimits{
			MaxGroup:   cfg.Settlement.SubsetMaxGroup,
			StepBudget: cfg.Settlement.SubsetStepBudget,
		},
		Logger: log,
	}
	res, err := settlement.NewSelector(opts, cfg.Settlement.Parallel).Settle(context.Background(), reduced, kind)
	switch {
	case errors.Is(err, errors.ErrConservationViolated):
		log.Fatal("Settlement failed its audit", map[string]interface{}{"error": err.Error()})
	case errors.Is(err, errors.ErrNoResult):
		log.Fatal("Nothing to settle", map[string]interface{}{"file": *in})
	case err != nil:
		log.Fatal("Settlement failed", map[string]interface{}{"error": err.Error()})
	}

	fmt.Printf("%s: %d raw IOUs settled with %d transfers (%s)\n",
		raw.Name, len(raw.Transactions), len(res.Ledger.Transactions), res.Strategy)
	if err := codec.Report(os.Stdout, res.Ledger.Transactions); err != nil {
		log.Fatal("Failed to print settlement", map[string]interface{}{"error": err.Error()})
	}

	if *compare {
		compareAll(os.Stdout, codec, settlement.AllStrategies(opts), reduced, res, log)
	}

	if *out != "" {
		if err := writeFile(codec, *out, res.Ledger.Transactions); err != nil {
			log.Fatal("Failed to write settlement", map[string]interface{}{"file": *out, "error": err.Error()})
		}
	}
}

// compareAll prints every strategy other than the chosen one next to it.
func compareAll(w io.Writer, codec *ledgerio.Codec, strategies []settlement.Strategy, reduced *domain.Ledger, res *settlement.Result, log logger.Logger) {
	for _, s := range strategies {
		if s.Kind() == res.Strategy {
			continue
		}
		alt, err := s.Settle(reduced)
		if err != nil {
			log.Warn("Strategy failed", map[string]interface{}{"strategy": string(s.Kind()), "error": err.Error()})
			continue
		}
		fmt.Fprintln(w)
		if err := codec.Compare(w, string(res.Strategy), res.Ledger.Transactions, string(s.Kind()), alt.Transactions); err != nil {
			log.Warn("Failed to print comparison", map[string]interface{}{"strategy": string(s.Kind()), "error": err.Error()})
		}
	}
}

func load(codec *ledgerio.Codec, path string) ([]ledger.Entry, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return codec.Load(r)
}

func writeFile(codec *ledgerio.Codec, path string, transfers []domain.Transaction) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := codec.WriteCSV(f, transfers); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ledgerName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
