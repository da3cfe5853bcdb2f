// Package main implements routequote, a command line client for the route
// optimizer. It prints the recommended route for a transfer and can list
// the configured chain and bridge catalog.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourorg/route-optimizer-ea/internal/config"
	"github.com/yourorg/route-optimizer-ea/internal/gas"
	"github.com/yourorg/route-optimizer-ea/internal/model"
	"github.com/yourorg/route-optimizer-ea/internal/routing"
	"github.com/yourorg/route-optimizer-ea/internal/types"
)

var (
	sourceFlag      string
	destinationFlag string
	amountFlag      float64
	objectiveFlag   string
	configFlag      string
)

var rootCmd = &cobra.Command{
	Use:           "routequote",
	Short:         "Recommend cross-chain transfer routes from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Print the best route for a transfer",
	RunE:  runQuote,
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List the chains and bridges in the catalog",
	RunE:  runChains,
}

func init() {
	quoteCmd.Flags().StringVar(&sourceFlag, "source", "", "source chain (required)")
	quoteCmd.Flags().StringVar(&destinationFlag, "destination", "", "destination chain (required)")
	quoteCmd.Flags().Float64Var(&amountFlag, "amount", 0, "transfer amount in USD (required)")
	quoteCmd.Flags().StringVar(&objectiveFlag, "objective", "", "scoring objective: cost, speed or balance")
	_ = quoteCmd.MarkFlagRequired("source")
	_ = quoteCmd.MarkFlagRequired("destination")
	_ = quoteCmd.MarkFlagRequired("amount")

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to a TOML catalog file")
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(chainsCmd)
}

func main() {
	logrus.SetLevel(logrus.WarnLevel) // keep quote output clean

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if configFlag != "" {
		os.Setenv("ROUTER_CONFIG_FILE", configFlag)
	}
	return config.Load()
}

func settingsFromConfig(cfg config.Config) routing.Settings {
	return routing.Settings{
		Chains:            cfg.Chains,
		Bridges:           cfg.Bridges,
		Objective:         cfg.Objective,
		MaxHops:           cfg.MaxHops,
		SlippageTolerance: cfg.SlippageTolerance,
		GasMultiplier:     cfg.GasMultiplier,
		BalanceCostWeight: cfg.BalanceCostWeight,
		ReferenceCost:     cfg.ReferenceCost,
		ReferenceTime:     cfg.ReferenceTime,
	}
}

func buildOptimizer(cfg config.Config) (*routing.Optimizer, *gas.Manager, error) {
	catalog, err := routing.NewCatalog(settingsFromConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	manager, err := gas.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	optimizer, err := routing.NewOptimizer(catalog, manager)
	if err != nil {
		return nil, nil, err
	}
	return optimizer, manager, nil
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if objectiveFlag != "" {
		cfg.Objective = objectiveFlag
	}

	optimizer, manager, err := buildOptimizer(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	source := types.Chain(strings.ToLower(strings.TrimSpace(sourceFlag)))
	destination := types.Chain(strings.ToLower(strings.TrimSpace(destinationFlag)))

	rec, err := optimizer.FindOptimalRoute(ctx, source, destination, amountFlag)
	if err != nil {
		return err
	}

	printRecommendation(rec)
	return nil
}

func printRecommendation(rec *model.RouteRecommendation) {
	fmt.Println(color.HiBlueString("%s -->> %s  (%.2f USD)", rec.SourceChain, rec.DestinationChain, rec.Amount))
	fmt.Println(rec.Recommendation)
	fmt.Println()

	if rec.TotalHops == 0 {
		fmt.Println(color.GreenString("same chain, no bridge needed"))
	}
	for i, edge := range rec.Path {
		fmt.Printf("  %d. %s  %s -> %s  cost %s  time %s  reliability %.1f%%\n",
			i+1, color.CyanString(string(edge.Bridge)), edge.FromChain, edge.ToChain,
			color.YellowString("$%.2f", edge.CostUSD), edge.Time, edge.Reliability*100)
	}
	fmt.Println()

	fmt.Printf("total cost        %s\n", color.YellowString("$%.2f", rec.TotalCost))
	fmt.Printf("total time        %s\n", rec.TotalTime)
	fmt.Printf("success chance    %.2f%%\n", rec.SuccessProbability*100)
	fmt.Printf("minimum received  %.2f\n", rec.MinimumReceived)
	fmt.Printf("score (%s)   %.4f\n", rec.Objective, rec.Score)
	if rec.CostSavings > 0 {
		fmt.Println(color.GreenString("saves $%.2f against the worst candidate", rec.CostSavings))
	}

	if len(rec.ScoringFactors) > 0 {
		fmt.Println("\nscoring factors:")
		for _, f := range rec.ScoringFactors {
			fmt.Printf("  %-14s value %.4f  weight %.2f  contribution %.4f\n",
				f.Name, f.Value, f.Weight, f.Contribution)
		}
	}
}

func runChains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	catalog, err := routing.NewCatalog(settingsFromConfig(cfg))
	if err != nil {
		return err
	}

	fmt.Println(color.HiBlueString("chains (%d):", len(catalog.Chains())))
	for _, chain := range catalog.Chains() {
		cs, _ := catalog.ChainSettings(chain)
		fmt.Printf("  %-10s gas baseline $%.2f\n", chain, cs.GasBaseline)
	}

	fmt.Println(color.HiBlueString("\nbridges (%d):", len(catalog.Bridges())))
	for _, bridge := range catalog.Bridges() {
		bs, _ := catalog.BridgeSettings(bridge)
		fmt.Printf("  %-10s base fee $%.2f  fee %.3f%%  time %s  reliability %.1f%%  min $%.0f\n",
			bridge, bs.BaseFee, bs.FeePercent*100, bs.BaseTime.Duration, bs.Reliability*100, bs.MinAmount)
	}
	return nil
}
