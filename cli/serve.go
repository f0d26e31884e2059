package cli

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/strideml/simlink/brainsrv"
)

// ServeCommand runs a local mock brain server to develop simulators
// against.
func ServeCommand() *cobra.Command {
	var (
		addr           string
		episodes       int
		episodeLength  int
		batchSize      int
		iterationLimit int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local mock brain server",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			server := brainsrv.New(brainsrv.Config{
				Addr:           addr,
				Episodes:       episodes,
				EpisodeLength:  episodeLength,
				BatchSize:      batchSize,
				IterationLimit: iterationLimit,
				Logger:         log,
			})
			if err := server.Start(); err != nil {
				return err
			}
			log.Info("serving", "url", server.URL())

			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			<-interrupt

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:9000", "Address to listen on")
	cmd.Flags().IntVarP(&episodes, "episodes", "e", 10, "Number of episodes per session")
	cmd.Flags().IntVar(&episodeLength, "episode-length", 100, "Iterations before the trainer stops an episode")
	cmd.Flags().IntVar(&batchSize, "batch", 1, "Predictions delivered per message")
	cmd.Flags().Int64Var(&iterationLimit, "iteration-limit", 0, "iteration_limit episode property handed to the simulator")
	return cmd
}
