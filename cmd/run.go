package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/procsim/datarecording"
	"github.com/sarchlab/procsim/examples/machineshop"
	"github.com/sarchlab/procsim/monitoring"
	"github.com/sarchlab/procsim/sim"
	"github.com/sarchlab/procsim/tracing"
)

const envPrefix = "PROCSIM_"

type runOptions struct {
	record        bool
	recordPath    string
	monitor       bool
	monitorPort   int
	openBrowser   bool
	traceDispatch bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	defaults := machineshop.DefaultConfig()

	c := &cobra.Command{
		Use:   "run",
		Short: "Run the machine shop simulation",
		Long: `Run the machine shop simulation. Settings are taken from the ` +
			`flags, then from PROCSIM_* environment variables (a .env file ` +
			`is honored), then from the YAML file given by --config, and ` +
			`finally from the built-in defaults.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := resolveShopConfig(c)
			if err != nil {
				return err
			}

			applyEnvOptions(c, opts)

			return runShop(c.OutOrStdout(), cfg, *opts)
		},
	}

	f := c.Flags()
	f.String("config", "", "YAML file describing the machine shop")
	f.Uint64("seed", defaults.Seed, "Seed of the random streams")
	f.Float64("horizon", defaults.Horizon,
		"Simulated length of each replication")
	f.Int("replications", defaults.Replications,
		"Number of replications, with a reset in between")
	f.Float64("inter-arrival-mean", defaults.InterArrivalMean,
		"Mean time between job arrivals")
	f.Float64("service-mean", defaults.ServiceMean,
		"Mean service time of the machine")

	f.BoolVar(&opts.record, "record", false,
		"Record every kernel event into a SQLite database")
	f.StringVar(&opts.recordPath, "record-path", "",
		"Database name, without the .sqlite3 suffix; generated if empty")
	f.BoolVar(&opts.monitor, "monitor", false,
		"Serve the monitoring dashboard while the simulation runs")
	f.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server; random if 0")
	f.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring dashboard in a browser")
	f.BoolVar(&opts.traceDispatch, "trace-dispatch", false,
		"Log every dispatch decision")

	return c
}

// resolveShopConfig merges the configuration sources. Flags that were set
// explicitly win over the environment, which wins over the YAML file, which
// wins over the defaults.
func resolveShopConfig(c *cobra.Command) (machineshop.Config, error) {
	cfg := machineshop.DefaultConfig()

	path := stringSetting(c, "config")
	if path != "" {
		loaded, err := machineshop.LoadConfig(path)
		if err != nil {
			return cfg, err
		}

		cfg = loaded
	}

	var err error

	if cfg.Seed, err = uint64Setting(c, "seed", cfg.Seed); err != nil {
		return cfg, err
	}

	if cfg.Horizon, err = float64Setting(c, "horizon", cfg.Horizon); err != nil {
		return cfg, err
	}

	if cfg.Replications, err = intSetting(c, "replications",
		cfg.Replications); err != nil {
		return cfg, err
	}

	if cfg.InterArrivalMean, err = float64Setting(c, "inter-arrival-mean",
		cfg.InterArrivalMean); err != nil {
		return cfg, err
	}

	if cfg.ServiceMean, err = float64Setting(c, "service-mean",
		cfg.ServiceMean); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// envName maps a flag name to its environment variable, so "service-mean"
// becomes PROCSIM_SERVICE_MEAN.
func envName(flag string) string {
	name := []byte(envPrefix)
	for _, r := range []byte(flag) {
		switch {
		case r == '-':
			name = append(name, '_')
		case r >= 'a' && r <= 'z':
			name = append(name, r-'a'+'A')
		default:
			name = append(name, r)
		}
	}

	return string(name)
}

// lookup returns the raw value of a setting that was given on the command
// line or in the environment.
func lookup(c *cobra.Command, flag string) (string, bool) {
	if c.Flags().Changed(flag) {
		return c.Flags().Lookup(flag).Value.String(), true
	}

	return os.LookupEnv(envName(flag))
}

func stringSetting(c *cobra.Command, flag string) string {
	v, _ := lookup(c, flag)
	return v
}

func float64Setting(c *cobra.Command, flag string, fallback float64) (
	float64, error,
) {
	v, ok := lookup(c, flag)
	if !ok {
		return fallback, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", flag, v, err)
	}

	return f, nil
}

func intSetting(c *cobra.Command, flag string, fallback int) (int, error) {
	v, ok := lookup(c, flag)
	if !ok {
		return fallback, nil
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", flag, v, err)
	}

	return i, nil
}

func uint64Setting(c *cobra.Command, flag string, fallback uint64) (
	uint64, error,
) {
	v, ok := lookup(c, flag)
	if !ok {
		return fallback, nil
	}

	u, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s %q: %w", flag, v, err)
	}

	return u, nil
}

// applyEnvOptions fills the output options that were not given as flags from
// the environment.
func applyEnvOptions(c *cobra.Command, opts *runOptions) {
	if !c.Flags().Changed("record-path") {
		if v, ok := os.LookupEnv(envName("record-path")); ok {
			opts.recordPath = v
			opts.record = true
		}
	}

	if !c.Flags().Changed("monitor-port") {
		if v, ok := os.LookupEnv(envName("monitor-port")); ok {
			port, err := strconv.Atoi(v)
			if err != nil {
				logrus.Warnf("ignoring invalid %s %q", envName("monitor-port"), v)
				return
			}

			opts.monitorPort = port
			opts.monitor = true
		}
	}
}

func runShop(out io.Writer, cfg machineshop.Config, opts runOptions) error {
	logger := logrus.StandardLogger()

	counts := tracing.NewDispatchCountTracer(tracing.NamePrefix("shop."))
	machineBusy := tracing.NewBusyTimeTracer(func(p *sim.Process) bool {
		return p.Name() == "shop.machine"
	})

	builder := sim.MakeBuilder().
		WithLogger(logger).
		WithHook(counts).
		WithHook(machineBusy)

	if opts.traceDispatch {
		builder = builder.WithHook(sim.NewDispatchLogger(logger))
	}

	if opts.record {
		recorder := datarecording.New(opts.recordPath)
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.WithError(err).Warn("cannot close the recording")
			}
		}()

		builder = builder.WithHook(datarecording.NewKernelRecorder(recorder))
	}

	s := builder.Build()
	defer s.Shutdown()

	shop := machineshop.NewShop(s, cfg, logger)

	if opts.monitor {
		m := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)
		if opts.openBrowser {
			m.WithBrowser()
		}

		m.RegisterKernel(s)

		bar := m.CreateProgressBar("replications", uint64(cfg.Replications))
		shop.OnReplication(func(machineshop.Stats) {
			bar.IncrementFinished(1)
		})

		m.StartServer()
	}

	stats, err := shop.Run()
	if err != nil {
		return err
	}

	machineBusy.CloseAll(s.CurrentTime())

	printStats(out, stats)
	fmt.Fprintf(out, "\nmachine dispatches: %d\nmachine busy time: %.4f\n",
		counts.GetDispatchCount("shop.machine"), machineBusy.BusyTime())

	return nil
}

func printStats(out io.Writer, stats []machineshop.Stats) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w,
		"replication\tarrived\tprocessed\tqueue\tresponse time\tutilization")

	for _, st := range stats {
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%.4f\t%.4f\n",
			st.Replication, st.Arrived, st.Processed, st.QueueLength,
			st.MeanResponseTime, st.Utilization)
	}

	w.Flush()
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
