package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/strideml/simlink/config"
)

var (
	brainName  string
	serverURL  string
	accessKey  string
	username   string
	profile    string
	predict    string
	verbose    bool
	recordFile string
	plotFile   string
)

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "simlink",
		Short: "Connect simulators to a brain server for training or prediction",
	}
	rootCommand.PersistentFlags().StringVarP(&brainName, "brain", "b", "", "Name of the brain to connect to")
	rootCommand.PersistentFlags().StringVar(&serverURL, "url", "", "Brain server URL")
	rootCommand.PersistentFlags().StringVar(&accessKey, "accesskey", "", "Access key used when connecting to the brain server")
	rootCommand.PersistentFlags().StringVar(&username, "username", "", "User name")
	rootCommand.PersistentFlags().StringVar(&profile, "profile", "", "Configuration profile to select")
	rootCommand.PersistentFlags().StringVar(&predict, "predict", "", "Connect for prediction against the given brain version, or 'latest'")
	rootCommand.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCommand.PersistentFlags().StringVar(&recordFile, "record", "", "Record episode traces to the given JSONL file")
	rootCommand.PersistentFlags().StringVar(&plotFile, "plot", "", "Save a reward-per-episode plot to the given PNG file")
	// adding the subcommands here
	rootCommand.AddCommand(CartpoleCommand())
	rootCommand.AddCommand(ServeCommand())
	return rootCommand
}

// loadConfig resolves configuration and layers the command-line flags on
// top, flags winning over files and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(profile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("brain") {
		cfg.Brain = brainName
	}
	if cmd.Flags().Changed("url") {
		cfg.URL = serverURL
	}
	if cmd.Flags().Changed("accesskey") {
		cfg.AccessKey = accessKey
	}
	if cmd.Flags().Changed("username") {
		cfg.Username = username
	}
	if cmd.Flags().Changed("predict") {
		version, err := config.ParsePredictVersion(predict)
		if err != nil {
			return nil, err
		}
		cfg.Predict = true
		cfg.BrainVersion = version
	}
	cfg.Verbose = verbose

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
