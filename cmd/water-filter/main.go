// Command water-filter runs the filter controller: it ranges the tank, filters
// the TDS probes, drives the pump and buzzer, and publishes telemetry to MQTT.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sweeney/water-filter/internal/config"
)

type options struct {
	configPath string
	httpAddr   string
	broker     string
	serialPort string
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "water-filter",
	Short: "Water filter pump and TDS monitor",
	Long: `water-filter measures the tank level and the input/output TDS probes,
switches the pump relay and buzzer, and reports over MQTT, HTTP and serial.`,
	SilenceUsage: true,
	RunE:         runDaemon,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control loop (default)",
	RunE:  runDaemon,
}

var printStateCmd = &cobra.Command{
	Use:   "print-state",
	Short: "Read every sensor once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return printState(cmd.OutOrStdout(), cfg)
	},
}

var resetUseCountCmd = &cobra.Command{
	Use:   "reset-use-count",
	Short: "Reset the persisted filter use counter (daemon must be stopped)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		prev, err := resetUseCount(cfg.Store.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "use count reset (was %d)\n", prev)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "/etc/water-filter/config.yaml", "YAML configuration file")
	pf.StringVar(&opts.httpAddr, "http", "", "HTTP status address, overrides config (\"off\" disables)")
	pf.StringVar(&opts.broker, "broker", "", "MQTT broker URL, overrides config (\"off\" disables)")
	pf.StringVar(&opts.serialPort, "serial", "", "Serial console device, overrides config (\"off\" disables)")

	rootCmd.AddCommand(runCmd, printStateCmd, resetUseCountCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, o options) {
	override := func(dst *string, v string) {
		switch v {
		case "":
		case "off":
			*dst = ""
		default:
			*dst = v
		}
	}
	override(&cfg.HTTP.Addr, o.httpAddr)
	override(&cfg.MQTT.Broker, o.broker)
	override(&cfg.Serial.Port, o.serialPort)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return run(cfg)
}
