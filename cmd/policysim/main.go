// Command policysim checks the outcome policies against their target odds.
//
// For every bet it settles many simulated wagers with the production strategies
// and reports the empirical win rate, the return to player and a two-sided
// binomial p-value of the observed wins against the target probability.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"gambler/settlement/config"
	"gambler/settlement/domain/entities"
	"gambler/settlement/domain/services"

	"github.com/cheggaaa/pb/v3"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

type options struct {
	trials     int
	stake      int64
	seed       uint64
	houseEdge  string
	policyFile string
	alpha      float64
}

var defaultBets = map[entities.GameType][]string{
	entities.GameTypeDice:     {"under:10", "under:50", "over:50", "over:90"},
	entities.GameTypeRoulette: {"red", "odd", "low", "straight:17"},
}

type report struct {
	gameType entities.GameType
	bet      string
	target   float64
	wins     int
	trials   int
	rtp      float64
	stdDev   float64
	pValue   float64
}

func main() {
	opts := parseFlags()

	policies, fallback, err := loadPolicies(opts)
	if err != nil {
		log.Fatal(err)
	}
	registry := services.DefaultStrategies(policies, fallback)
	sampler := services.NewSeededSampler(opts.seed)

	var reports []report
	for _, gameType := range []entities.GameType{entities.GameTypeDice, entities.GameTypeRoulette} {
		strategy, err := registry.Get(gameType)
		if err != nil {
			log.Fatal(err)
		}
		for _, bet := range defaultBets[gameType] {
			r, err := simulate(strategy, bet, opts, sampler)
			if err != nil {
				log.Fatalf("%s %s: %v", gameType, bet, err)
			}
			reports = append(reports, r)
		}
	}

	if failed := printReports(reports, opts); failed > 0 {
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.IntVar(&opts.trials, "trials", 200000, "settlements per bet")
	flag.Int64Var(&opts.stake, "stake", 1000, "stake per wager in minor units")
	flag.Uint64Var(&opts.seed, "seed", 0, "sampler seed (0 uses the clock)")
	flag.StringVar(&opts.houseEdge, "edge", "0.03", "house edge used when no policy file overrides it")
	flag.StringVar(&opts.policyFile, "policies", "", "YAML game policy file")
	flag.Float64Var(&opts.alpha, "alpha", 0.001, "significance level of the binomial test")
	flag.Parse()

	if opts.seed == 0 {
		opts.seed = uint64(time.Now().UnixNano())
	}
	return opts
}

func loadPolicies(opts options) (map[entities.GameType]services.GamePolicy, services.GamePolicy, error) {
	edge, err := decimal.NewFromString(opts.houseEdge)
	if err != nil {
		return nil, services.GamePolicy{}, fmt.Errorf("invalid edge: %w", err)
	}

	cfg := config.NewTestConfig()
	cfg.HouseEdge = edge
	cfg.MinStake = 1
	cfg.MaxStake = math.MaxInt64
	cfg.GamePolicyFile = opts.policyFile

	policies, err := cfg.GamePolicies()
	if err != nil {
		return nil, services.GamePolicy{}, err
	}
	return policies, cfg.DefaultGamePolicy(), nil
}

func simulate(strategy services.OutcomeStrategy, bet string, opts options, sampler services.Sampler) (report, error) {
	multiplier, err := strategy.Price(bet)
	if err != nil {
		return report{}, err
	}
	edge, _ := strategy.Policy().HouseEdge.Float64()
	m, _ := multiplier.Float64()

	r := report{
		gameType: strategy.GameType(),
		bet:      bet,
		target:   (1 - edge) / m,
		trials:   opts.trials,
	}

	wager := &entities.Wager{
		GameType:      strategy.GameType(),
		StakeAmount:   opts.stake,
		ChosenOutcome: bet,
		ImpliedOdds:   multiplier,
		Status:        entities.WagerStatusFunded,
	}

	returns := make([]float64, opts.trials)
	bar := pb.StartNew(opts.trials)
	for i := 0; i < opts.trials; i++ {
		settlement, err := strategy.Settle(services.SettleInput{Wager: wager}, sampler)
		if err != nil {
			bar.Finish()
			return report{}, err
		}
		if settlement.Won {
			r.wins++
		}
		res := settlement.Resolution(opts.stake)
		returns[i] = float64(res.Payout) / float64(opts.stake)
		bar.Increment()
	}
	bar.Finish()

	r.rtp, r.stdDev = stat.MeanStdDev(returns, nil)
	r.pValue = binomialPValue(r.wins, r.trials, r.target)
	return r, nil
}

// binomialPValue is the two-sided p-value of observing wins under Binomial(n, p)
func binomialPValue(wins, n int, p float64) float64 {
	dist := distuv.Binomial{N: float64(n), P: p}
	mean := dist.Mean()
	var tail float64
	if float64(wins) <= mean {
		tail = dist.CDF(float64(wins))
	} else {
		tail = dist.Survival(float64(wins - 1))
	}
	return math.Min(1, 2*tail)
}

func printReports(reports []report, opts options) int {
	p := message.NewPrinter(language.English)
	p.Printf("\nOutcome policy simulation: %d trials per bet, seed %d\n", opts.trials, opts.seed)
	p.Printf("%-9s %-12s %9s %9s %8s %8s %10s  %s\n", "game", "bet", "target", "actual", "rtp", "stddev", "p-value", "result")

	failed := 0
	for _, r := range reports {
		actual := float64(r.wins) / float64(r.trials)
		result := "PASS"
		if r.pValue < opts.alpha {
			result = "FAIL"
			failed++
		}
		p.Printf("%-9s %-12s %9.5f %9.5f %8.4f %8.4f %10.4f  %s\n",
			r.gameType, r.bet, r.target, actual, r.rtp, r.stdDev, r.pValue, result)
	}
	p.Printf("\n%d of %d bets within tolerance\n", len(reports)-failed, len(reports))
	return failed
}
