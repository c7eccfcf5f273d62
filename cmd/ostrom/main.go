package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/icodeforyou/ostrom-go/config"
	"github.com/icodeforyou/ostrom-go/coordinator"
	"github.com/icodeforyou/ostrom-go/database"
	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/logging"
	"github.com/icodeforyou/ostrom-go/ostrom"
	"github.com/icodeforyou/ostrom-go/sensor"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "ostrom",
		Short:         "Query the Ostrom API with the credentials of the service config",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(logging.NewConsoleHandler(os.Stderr, level)))
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	root.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "timeout of the command")

	root.AddCommand(userCmd(), contractsCmd(), pricesCmd(), consumptionCmd(), snapshotCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func userCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user",
		Short: "Print the account holder",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, _, client, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			user, err := client.GetUser(ctx)
			if err != nil {
				return err
			}
			return printJSON(user)
		},
	}
}

func contractsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contracts",
		Short: "Print the energy contracts of the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, _, client, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()
			contracts, err := client.GetContracts(ctx)
			if err != nil {
				return err
			}
			return printJSON(contracts)
		},
	}
}

func pricesCmd() *cobra.Command {
	var zip string
	var days int
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Print the hourly spot prices from yesterday on",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cnfg, client, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()

			if zip == "" {
				provider := ostrom.NewProvider(client, cnfg.Ostrom.ContractID, cnfg.Ostrom.Zip)
				if err := provider.Initialize(ctx); err != nil {
					return err
				}
				contract, _ := provider.Contract()
				zip = contract.Address.Zip
			}

			start := hours.Yesterday(time.Now(), hours.Location()).Start
			prices, err := client.GetSpotPrices(ctx, zip, start, start.AddDate(0, 0, days), ostrom.ResolutionHour)
			if err != nil {
				return err
			}
			for _, p := range prices {
				fmt.Printf("%s  net %.4f  taxes %.4f  total %.4f EUR/kWh\n",
					sensor.FormatTime(p.StartsAt.In(hours.Location())), p.NetPerKWh, p.GrossTaxPerKWh, p.Total())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&zip, "zip", "", "zip code, defaults to the contract address")
	cmd.Flags().IntVar(&days, "days", 3, "number of days to fetch")
	return cmd
}

func consumptionCmd() *cobra.Command {
	var days int
	var resolution string
	cmd := &cobra.Command{
		Use:   "consumption",
		Short: "Print the metered consumption of the selected contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cnfg, client, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()

			provider := ostrom.NewProvider(client, cnfg.Ostrom.ContractID, cnfg.Ostrom.Zip)
			if err := provider.Initialize(ctx); err != nil {
				return err
			}
			contract, _ := provider.Contract()

			end := hours.Today(time.Now(), hours.Location()).Start
			consumptions, err := client.GetConsumption(ctx, contract.ID, end.AddDate(0, 0, -days), end, ostrom.Resolution(resolution))
			if err != nil {
				return err
			}
			total := 0.0
			for _, c := range consumptions {
				total += c.KWh
				fmt.Printf("%s  %.3f kWh\n", sensor.FormatTime(c.StartsAt.In(hours.Location())), c.KWh)
			}
			fmt.Printf("total  %.3f kWh\n", total)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 1, "number of days before today")
	cmd.Flags().StringVar(&resolution, "resolution", string(ostrom.ResolutionHour), "HOUR, DAY or MONTH")
	return cmd
}

func snapshotCmd() *cobra.Command {
	var stored bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Run one refresh cycle and print the sensor state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, cnfg, client, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer cancel()

			if stored {
				db, err := database.New(ctx, cnfg.Database.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				snap, ok, err := db.LatestSnapshot(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no stored snapshot in %s", cnfg.Database.Path)
				}
				return printJSON(sensor.FromSnapshot(snap))
			}

			provider := ostrom.NewProvider(client, cnfg.Ostrom.ContractID, cnfg.Ostrom.Zip)
			coord := coordinator.New(provider, coordinator.WithLocation(hours.Location()))
			defer coord.Teardown()
			if err := coord.Setup(ctx); err != nil {
				return err
			}
			snap, _ := coord.Snapshot()
			return printJSON(sensor.FromSnapshot(snap))
		},
	}
	cmd.Flags().BoolVar(&stored, "stored", false, "print the latest snapshot of the database instead")
	return cmd
}

func setup(parent context.Context) (context.Context, context.CancelFunc, *config.AppConfig, *ostrom.Client, error) {
	cnfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := cnfg.Validate(); err != nil {
		return nil, nil, nil, nil, err
	}
	if err := hours.SetTimezone(cnfg.Gui.GetTimezone()); err != nil {
		return nil, nil, nil, nil, err
	}
	endpoints, err := cnfg.Ostrom.GetEndpoints()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, cancel, cnfg, ostrom.NewClient(cnfg.Ostrom.ClientID, cnfg.Ostrom.ClientSecret, endpoints), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
