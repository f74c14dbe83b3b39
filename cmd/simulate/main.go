// ==============================================================================
// STRATEGY SIMULATION - cmd/simulate/main.go
// ==============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"text/tabwriter"

	"settleup/internal/domain"
	"settleup/internal/ledger"
	"settleup/internal/settlement"
	"settleup/pkg/logger"
)

// Settles random groups and reports how often each strategy is the best.
func main() {
	rounds := flag.Int("rounds", 1000, "number of random ledgers")
	people := flag.Int("people", 8, "participants per ledger")
	entries := flag.Int("entries", 20, "raw IOUs per ledger")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	log := logger.NewWithWriter("simulate", os.Stderr, logger.LevelWarn)
	rng := rand.New(rand.NewSource(*seed))
	selector := settlement.NewSelector(settlement.Options{Logger: log}, true)

	fmt.Println("=========================================================")
	fmt.Println("SETTLEMENT STRATEGY SIMULATION")
	fmt.Printf("%d ledgers, %d participants, %d IOUs each (seed %d)\n", *rounds, *people, *entries, *seed)
	fmt.Println("=========================================================")

	wins := make(map[domain.Strategy]int)
	total := make(map[domain.Strategy]int)
	var inputs, settled int

	for i := 0; i < *rounds; i++ {
		raw, err := ledger.New(fmt.Sprintf("round-%d", i), randomEntries(rng, *people, *entries))
		if err != nil {
			log.Fatal("Generated an invalid ledger", map[string]interface{}{"error": err.Error()})
		}

		res, err := selector.MustBest(context.Background(), ledger.Reduce(raw))
		if err != nil {
			continue
		}

		wins[res.Strategy]++
		for _, c := range res.Candidates {
			total[c.Strategy] += c.Transactions
		}
		inputs += len(raw.Transactions)
		settled += len(res.Ledger.Transactions)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "strategy\twins\tavg transfers")
	for _, kind := range domain.Strategies {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\n", kind, wins[kind], float64(total[kind])/float64(max(*rounds, 1)))
	}
	tw.Flush()

	fmt.Printf("\n%d raw IOUs settled with %d transfers\n", inputs, settled)
}

func randomEntries(rng *rand.Rand, people, n int) []ledger.Entry {
	out := make([]ledger.Entry, 0, n)
	for len(out) < n {
		g, r := rng.Intn(people), rng.Intn(people)
		if g == r {
			continue
		}
		out = append(out, ledger.Entry{
			Giver:    fmt.Sprintf("p%02d", g),
			Receiver: fmt.Sprintf("p%02d", r),
			Amount:   int64(1 + rng.Intn(10000)),
		})
	}
	return out
}
