package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/config"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/logger"
	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/postgres"
)

var (
	baseURL   string
	launchURL string
	timeout   time.Duration
)

// migrations are swappable for tests.
var (
	migrateUp   = postgres.RunMigrations
	migrateDown = postgres.RunMigrationsDown
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "cashflow-cli",
		Short:         "CashflowEngine CLI tool",
		Long:          `A command line interface for the CashflowEngine launch and consolidated services.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the consolidated report API")
	rootCmd.PersistentFlags().StringVar(&launchURL, "launch-url", "http://localhost:8081", "Base URL of the transaction launch API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(reportCmd(), transactionCmd(), migrateCmd())
	return rootCmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <date>",
		Short: "Show the consolidated balance for a day (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd.OutOrStdout(), baseURL+"/api/v1/reports/consolidated/"+url.PathEscape(args[0]))
		},
	}

	var from, to string
	rangeCmd := &cobra.Command{
		Use:   "range",
		Short: "List consolidated balances for an inclusive date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("from", from)
			q.Set("to", to)
			return getJSON(cmd.OutOrStdout(), baseURL+"/api/v1/reports/consolidated/?"+q.Encode())
		},
	}
	rangeCmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	rangeCmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")
	_ = rangeCmd.MarkFlagRequired("from")
	_ = rangeCmd.MarkFlagRequired("to")

	cmd.AddCommand(rangeCmd)
	return cmd
}

func transactionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transaction",
		Short: "Transaction operations",
	}

	var (
		amount         string
		txType         string
		description    string
		idempotencyKey string
	)
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Launch a credit or debit transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", amount, err)
			}

			body, err := json.Marshal(map[string]any{
				"amount":      value,
				"type":        txType,
				"description": description,
			})
			if err != nil {
				return err
			}

			req, err := http.NewRequest(http.MethodPost, launchURL+"/api/v1/transactions/", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if idempotencyKey != "" {
				req.Header.Set("Idempotency-Key", idempotencyKey)
			}

			return doJSON(cmd.OutOrStdout(), req)
		},
	}
	createCmd.Flags().StringVar(&amount, "amount", "", "Positive amount, e.g. 150.25")
	createCmd.Flags().StringVar(&txType, "type", "", "credit or debit")
	createCmd.Flags().StringVar(&description, "description", "", "Optional description")
	createCmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header value")
	_ = createCmd.MarkFlagRequired("amount")
	_ = createCmd.MarkFlagRequired("type")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a launched transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(cmd.OutOrStdout(), launchURL+"/api/v1/transactions/"+url.PathEscape(args[0]))
		},
	}

	cmd.AddCommand(createCmd, getCmd)
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadMigrationEnv()
			if err != nil {
				return err
			}
			return migrateUp(cfg.DatabaseURL, cfg.MigrationsPath, log)
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadMigrationEnv()
			if err != nil {
				return err
			}
			return migrateDown(cfg.DatabaseURL, cfg.MigrationsPath, log)
		},
	}

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func loadMigrationEnv() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load configuration: %w", err)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Service: "cli"})
	return cfg, log, nil
}

func getJSON(w io.Writer, target string) error {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return doJSON(w, req)
}

// doJSON sends req and pretty-prints the JSON response. Non-2xx responses
// are printed too and reported as an error.
func doJSON(w io.Writer, req *http.Request) error {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		fmt.Fprintln(w, string(body))
	} else {
		printJSON(w, payload)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(w, "failed to encode output: %v\n", err)
	}
}
