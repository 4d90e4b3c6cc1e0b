// Command greeter runs the example greeting service and client on the
// asynchronous RPC execution runtime.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/teranos/sgrpc/async"
	"github.com/teranos/sgrpc/config"
	"github.com/teranos/sgrpc/exec"
	"github.com/teranos/sgrpc/greeter"
	"github.com/teranos/sgrpc/logger"
	"github.com/teranos/sgrpc/server"
)

var (
	configPath string
	jsonOutput bool
	verbosity  int

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "greeter",
	Short: "Example greeting service on the sgrpc runtime",
	Long: `greeter — Example greeting service on the sgrpc runtime

Hosts the greeting.Greeter service on the asynchronous execution context,
and drives it with wrapped client senders.

Examples:
  greeter serve                      # Start the greeting server
  greeter greet Ada                  # One hello round trip
  greeter greet Ada --count 100      # 100 round trips
  greeter greet Ada --rate 10        # Paced at 10 requests/second`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("json") {
			cfg.Log.JSON = jsonOutput
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Log.Verbosity = verbosity
		}
		return logger.Initialize(cfg.Log.JSON, cfg.Log.Verbosity)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the greeting server",
	RunE:  runServe,
}

var greetCmd = &cobra.Command{
	Use:   "greet <name>",
	Short: "Call the greeting server",
	Args:  cobra.ExactArgs(1),
	RunE:  runGreet,
}

var (
	greetCount int
	greetRate  float64
	greetWorld bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON log output")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase output verbosity (-v, -vv)")

	greetCmd.Flags().IntVar(&greetCount, "count", 1, "Number of round trips")
	greetCmd.Flags().Float64Var(&greetRate, "rate", 0, "Requests per second; 0 means unpaced")
	greetCmd.Flags().BoolVar(&greetWorld, "world", false, "Call SayWorld instead of SayHello")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(greetCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ec, err := exec.New(cfg.Runtime.Workers, cfg.Runtime.ClientQueues,
		exec.WithLogger(logger.Logger))
	if err != nil {
		return err
	}

	app := &greeter.Server{}
	svc := greeter.NewService()
	container, err := server.Serve(ec, app, svc.Svc, svc.Wire(app), server.Options{
		WorkQueues: cfg.Server.WorkQueues,
		Port:       cfg.Server.Port,
		Logger:     logger.Logger,
	})
	if err != nil {
		return err
	}
	if err := ec.Run(); err != nil {
		return err
	}

	logger.Logger.Infow("greeter serving",
		logger.FieldService, greeter.ServiceName,
		logger.FieldPort, container.Port(),
		logger.FieldWorkers, cfg.Runtime.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Logger.Infow("greeter stopping")
	ec.Stop()
	return nil
}

func runGreet(cmd *cobra.Command, args []string) error {
	name := args[0]

	ec, err := exec.New(cfg.Runtime.Workers, cfg.Runtime.ClientQueues,
		exec.WithLogger(logger.Logger))
	if err != nil {
		return err
	}
	if err := ec.Run(); err != nil {
		return err
	}
	defer ec.Stop()

	client, err := greeter.Dial(cfg.Client.Target)
	if err != nil {
		return err
	}
	defer client.Close()

	pace := cfg.Client.Rate
	if cmd.Flags().Changed("rate") {
		pace = greetRate
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if pace > 0 {
		limiter = rate.NewLimiter(rate.Limit(pace), 1)
	}

	failures := 0
	for i := 0; i < greetCount; i++ {
		if err := limiter.Wait(cmd.Context()); err != nil {
			return err
		}

		send := client.SayHello(ec, name)
		if greetWorld {
			send = client.SayWorld(ec, name)
		}
		greeting, st, ok := async.Wait(send)
		if !ok {
			failures++
			logger.Logger.Warnw("greeting failed",
				logger.FieldStatusCode, st.Code().String(),
				logger.FieldError, st.Message())
			continue
		}
		fmt.Println(greeting)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d greetings failed", failures, greetCount)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
