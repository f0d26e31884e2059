package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/strideml/simlink/brain"
	"github.com/strideml/simlink/envs"
	"github.com/strideml/simlink/sim"
)

// CartpoleCommand runs the built-in cartpole simulation against a brain.
func CartpoleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cartpole",
		Short: "Run the cartpole demo simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger()

			b := brain.New(cfg)
			driver := sim.NewDriver(sim.DriverConfig{
				Name:      "cartpole_simulator",
				Sim:       envs.NewCartpole(log),
				Brain:     b,
				Logger:    log,
				TraceFile: recordFile,
			})

			if cfg.Predict {
				log.Info("predicting", "brain", b.Name(), "version", b.Version())
			} else {
				log.Info("training", "brain", b.Name())
			}

			// an interrupt is a clean stop, not a failure
			interrupt := make(chan os.Signal, 1)
			signal.Notify(interrupt, os.Interrupt)
			defer signal.Stop(interrupt)
			go func() {
				<-interrupt
				log.Info("interrupted, stopping")
				driver.Stop()
			}()

			for driver.Run() {
				log.Debug("cycle",
					"episode", driver.EpisodeCount(),
					"reward", driver.EpisodeReward(),
					"action", driver.LastAction())
			}

			stats := driver.Stats()
			fmt.Println(stats.Summary())
			if plotFile != "" && stats.Episodes() > 0 {
				if err := sim.SaveRewardPlot(plotFile, "cartpole", stats.Rewards()); err != nil {
					log.Warn("failed to save reward plot", "err", err)
				}
			}

			return driver.Err()
		},
	}
	return cmd
}
