package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	arbscanner "github.com/MohammedTeir/ArbitrageScanner"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/config"
	"github.com/MohammedTeir/ArbitrageScanner/pkg/market/coingecko"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// Command line flags
var (
	configFile string
	topSize    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "arbscanner",
		Short:   "Cross-exchange arbitrage alert bot",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path (e.g. ./arbscanner.yaml)")

	rootCmd.AddCommand(buildRunCmd())
	rootCmd.AddCommand(buildTopCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the scanner and the Telegram bot",
		RunE:  runScanner,
	}
}

func buildTopCmd() *cobra.Command {
	topCmd := &cobra.Command{
		Use:   "top",
		Short: "Print the top coins ranked by 24h volume",
		RunE:  runTop,
	}

	topCmd.Flags().IntVarP(&topSize, "size", "n", 25, "Number of entries to print")

	return topCmd
}

func runScanner(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	market := coingecko.New(settings.Market, arbscanner.DefaultLog)

	app, err := arbscanner.NewScanner(ctx, settings, market)
	if err != nil {
		return err
	}

	arbscanner.DefaultLog.Infof(
		"scanner started: scan every %s, cache refresh every %s",
		settings.Scan.Interval, settings.Scan.RefreshInterval,
	)

	return app.Run(ctx)
}

func runTop(cmd *cobra.Command, args []string) error {
	settings, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	market := coingecko.New(settings.Market, arbscanner.DefaultLog)

	coins, err := market.TopCoins(cmd.Context(), 1, topSize)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "ID", "Symbol", "Name", "Market Cap (USD)"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT,
	})

	for i, coin := range coins {
		table.Append([]string{
			strconv.Itoa(i + 1),
			coin.ID,
			coin.Symbol,
			coin.Name,
			strconv.FormatFloat(coin.MarketCap, 'f', 0, 64),
		})
	}

	table.Render()
	return nil
}
