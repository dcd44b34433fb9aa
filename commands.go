package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"i4.energy/across/kimgw/at"
	"i4.energy/across/kimgw/kim"
	"i4.energy/across/kimgw/power"
)

var (
	config *Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kimgw",
	Short: "KIM satellite uplink gateway",
	Long: `kimgw drives a Kineis KIM1 satellite radio module over its UART and
ON/OFF pin.

The module sleeps between uses. Every command wakes it up, confirms the
wake-up with a ping, runs and puts the module back to sleep. The serve
command keeps an HTTP gateway in front of the module instead.

Settings are read from flags, then environment variables (SERIAL_PORT,
BAUD_RATE, POWER_CHIP, POWER_LINE, POWER_ACTIVE_LOW, POWER_PIN_UNUSED,
BIND_ADDRESS, LOG_LEVEL, KIM_DEBUG), then defaults.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		config, err = LoadConfig(WithDefaults(), WithEnv(), WithFlags(cmd.Flags()))
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		logger = newLogger(config.LogLevel)
		return nil
	},
}

var (
	sendPower int

	cwDuration  int
	cwFrequency int
	cwPower     int

	configurePower  int
	configureFormat int
	configureCRC    int
	configureBCH    int
	configureSave   bool

	serveAwake bool
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print module identity and radio settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAwakeModule(cmd.Context(), func(m *kim.Module) error {
			queries := []struct {
				label string
				query func() (string, error)
			}{
				{"ID", m.ID},
				{"Serial number", m.SerialNumber},
				{"Firmware", m.Firmware},
				{"Power", m.Power},
				{"Frequency", m.FrequencyOffset},
				{"Format", m.Format},
			}
			for _, q := range queries {
				reply, err := q.query()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", q.label+":", at.Value(reply))
			}
			return nil
		})
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <hex-data>",
	Short: "Transmit a hexadecimal message to the satellites",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data := args[0]
		if _, err := at.Transmit(data); err != nil {
			return err
		}
		return withAwakeModule(cmd.Context(), func(m *kim.Module) error {
			if sendPower != 0 {
				if err := m.SetPower(sendPower); err != nil {
					return err
				}
			}
			if err := m.Transmit(data); err != nil {
				return err
			}
			logger.Info("Message transmitted", "length", len(data))
			fmt.Fprintln(cmd.OutOrStdout(), "Message sent")
			return nil
		})
	},
}

var cwCmd = &cobra.Command{
	Use:   "cw",
	Short: "Emit an unmodulated carrier wave for testing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cw := at.CW{Duration: cwDuration, Frequency: cwFrequency, Power: cwPower}
		if _, err := at.CarrierWave(cw); err != nil {
			return err
		}
		return withAwakeModule(cmd.Context(), func(m *kim.Module) error {
			if err := m.CarrierWave(cw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Carrier wave started")
			return nil
		})
	},
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Change transmit power and message format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAwakeModule(cmd.Context(), func(m *kim.Module) error {
			if configurePower != 0 {
				if err := m.SetPower(configurePower); err != nil {
					return err
				}
			}
			if configureFormat >= 0 {
				f := at.Format(configureFormat)
				var err error
				if cmd.Flags().Changed("crc") || cmd.Flags().Changed("bch") {
					err = m.SetFormatCodes(f, configureCRC, configureBCH)
				} else {
					err = m.SetFormat(f)
				}
				if err != nil {
					return err
				}
			}
			if configureSave {
				if err := m.SaveConfig(); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration applied")
			return nil
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("serial-port", "/dev/ttyS0", "Serial port connected to the module")
	flags.Int("baud-rate", kim.DefaultBaudRate, "Baud rate for serial communication")
	flags.String("power-chip", "gpiochip0", "GPIO chip of the ON/OFF pin")
	flags.Int("power-line", 18, "GPIO line of the ON/OFF pin")
	flags.Bool("power-active-low", false, "ON/OFF pin is active low")
	flags.Bool("power-pin-unused", false, "ON/OFF pin is not wired, module always powered")
	flags.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("debug", false, "Trace raw AT exchanges at debug level")

	sendCmd.Flags().IntVar(&sendPower, "power", 0, "Transmit power to set before sending (100, 250, 500, 750, 1000)")

	cwCmd.Flags().IntVar(&cwDuration, "duration", 10, "Duration in steps of 100ms (1-3000)")
	cwCmd.Flags().IntVar(&cwFrequency, "frequency", 0, "Frequency in Hz (0 keeps the module setting)")
	cwCmd.Flags().IntVar(&cwPower, "cw-power", 0, "Signal power, requires --frequency")

	configureCmd.Flags().IntVar(&configurePower, "power", 0, "Transmit power (100, 250, 500, 750, 1000)")
	configureCmd.Flags().IntVar(&configureFormat, "format", -1, "Message format (0 raw, 1 standard)")
	configureCmd.Flags().IntVar(&configureCRC, "crc", 0, "CRC length (0 or 16), requires --format")
	configureCmd.Flags().IntVar(&configureBCH, "bch", 0, "BCH length (0 or 32), requires --format")
	configureCmd.Flags().BoolVar(&configureSave, "save", false, "Persist the configuration on the module")

	serveCmd.Flags().BoolVar(&serveAwake, "awake", false, "Wake the module up at start")

	rootCmd.AddCommand(infoCmd, sendCmd, cwCmd, configureCmd, serveCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

func newModule(config *Config, logger *slog.Logger) (*kim.Module, error) {
	pc, err := power.New(power.Options{
		Unused:    config.PowerPinUnused,
		Chip:      config.PowerChip,
		Line:      config.PowerLine,
		ActiveLow: config.PowerActiveLow,
	})
	if err != nil {
		return nil, fmt.Errorf("set up power pin: %w", err)
	}

	kimConfig, err := kim.NewConfigBuilder().
		WithDialer(kim.SerialDialer{
			PortName: config.SerialPort,
			BaudRate: config.BaudRate,
		}).
		WithPowerControl(pc).
		WithDebug(config.Debug).
		WithLogger(logger.With("component", "kim")).
		Build()
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create module config: %w", err)
	}

	m, err := kim.New(kimConfig)
	if err != nil {
		pc.Close()
		return nil, err
	}
	return m, nil
}

// withAwakeModule wakes the module up, runs fn and puts the module back to
// sleep. A failed wake-up aborts before fn runs.
func withAwakeModule(ctx context.Context, fn func(m *kim.Module) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m, err := newModule(config, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Shutdown(); err != nil {
			logger.Error("Failed to shut down module", "error", err)
		}
	}()

	if err := m.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize module: %w", err)
	}
	if _, err := m.SetAwake(ctx, true); err != nil {
		if errors.Is(err, kim.ErrWakeFailed) {
			logger.Error("KIM module did not wake up", "error", err)
		}
		return err
	}

	runErr := fn(m)

	if _, err := m.SetAwake(ctx, false); err != nil {
		logger.Warn("Failed to put module to sleep", "error", err)
	}
	return runErr
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m, err := newModule(config, logger)
	if err != nil {
		return err
	}

	if err := m.Initialize(ctx); err != nil {
		m.Shutdown()
		return fmt.Errorf("initialize module: %w", err)
	}
	if serveAwake {
		if _, err := m.SetAwake(ctx, true); err != nil {
			m.Shutdown()
			return err
		}
	}

	logger.Info("Starting KIM gateway", "serial_port", config.SerialPort, "state", m.State())

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Radio:  m,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("HTTP server failed", "error", err)
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	logger.Info("Putting module to sleep")
	if _, err := m.SetAwake(shutdownCtx, false); err != nil {
		logger.Error("Failed to put module to sleep", "error", err)
	}
	if err := m.Shutdown(); err != nil {
		logger.Error("Failed to shut down module", "error", err)
	}
	return runErr
}
