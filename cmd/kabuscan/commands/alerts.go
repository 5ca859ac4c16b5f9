package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage alerts",
	Long: `Manage user-defined alerts.

Example:
  go run ./cmd/kabuscan alerts list
  go run ./cmd/kabuscan alerts create --code 7203 --kind price-threshold --op ">=" --threshold 3000
  go run ./cmd/kabuscan alerts create --code 7203 --kind strategy-match --strategy A
  go run ./cmd/kabuscan alerts create --code 7203 --kind volume-surge --multiple 3
  go run ./cmd/kabuscan alerts toggle al-1a2b-000001
  go run ./cmd/kabuscan alerts delete al-1a2b-000001`,
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all alerts",
	RunE:  withDeps(runAlertsList),
}

var alertsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an alert",
	RunE:  withDeps(runAlertsCreate),
}

var alertsToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Toggle an alert between active and disabled",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(runAlertsToggle),
}

var alertsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  withDeps(runAlertsDelete),
}

var (
	alertCode      string
	alertKind      string
	alertOp        string
	alertThreshold float64
	alertStrategy  string
	alertMultiple  float64
)

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd, alertsCreateCmd, alertsToggleCmd, alertsDeleteCmd)

	alertsCreateCmd.Flags().StringVar(&alertCode, "code", "", "instrument code")
	alertsCreateCmd.Flags().StringVar(&alertKind, "kind", "", "alert kind (price-threshold|strategy-match|volume-surge)")
	alertsCreateCmd.Flags().StringVar(&alertOp, "op", ">=", "price comparison operator (>= or <=)")
	alertsCreateCmd.Flags().Float64Var(&alertThreshold, "threshold", 0, "price threshold")
	alertsCreateCmd.Flags().StringVar(&alertStrategy, "strategy", "", "strategy id (A or B)")
	alertsCreateCmd.Flags().Float64Var(&alertMultiple, "multiple", 0, "volume surge multiple")
}

// withDeps wraps a command body with shared wiring and signal handling.
func withDeps(fn func(ctx context.Context, d *deps, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := setup(ctx)
		if err != nil {
			return err
		}
		defer d.close()

		return fn(ctx, d, args)
	}
}

func runAlertsList(ctx context.Context, d *deps, args []string) error {
	alerts := d.engine.List(ctx)
	if len(alerts) == 0 {
		fmt.Println("No alerts defined")
		return nil
	}

	fmt.Printf("%-22s %-8s %-16s %-10s\n", "ID", "CODE", "KIND", "STATUS")
	for _, a := range alerts {
		fmt.Printf("%-22s %-8s %-16s %-10s\n", a.ID, a.InstrumentCode, a.Kind, a.Status)
	}
	return nil
}

func runAlertsCreate(ctx context.Context, d *deps, args []string) error {
	condition := contracts.AlertCondition{
		Operator:      alertOp,
		Threshold:     alertThreshold,
		StrategyID:    contracts.StrategyID(alertStrategy),
		SurgeMultiple: alertMultiple,
	}

	created, err := d.engine.Create(ctx, contracts.AlertKind(alertKind), alertCode, condition)
	if err != nil {
		return err
	}

	fmt.Printf("Created alert %s (%s on %s)\n", created.ID, created.Kind, created.InstrumentCode)
	return nil
}

func runAlertsToggle(ctx context.Context, d *deps, args []string) error {
	toggled, err := d.engine.Toggle(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Alert %s is now %s\n", toggled.ID, toggled.Status)
	return nil
}

func runAlertsDelete(ctx context.Context, d *deps, args []string) error {
	if err := d.engine.Delete(ctx, args[0]); err != nil {
		return err
	}

	fmt.Printf("Deleted alert %s\n", args[0])
	return nil
}
