package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/airportmatch/nearestairport/internal/common"
	commonconfig "github.com/airportmatch/nearestairport/internal/common/config"
	"github.com/airportmatch/nearestairport/internal/ingester/configuration"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/ingester"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ingester",
		SilenceUsage: true,
		Short:        "Assigns every user the nearest airport and bulk loads the result into postgres",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			common.BindCommandlineArguments(cmd.Flags())
		},
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.AddCommand(
		runCmd(),
		migrateDbCmd(),
		indexCmd(),
		linksCmd(),
	)

	return cmd
}

func loadConfig() (configuration.IngesterConfiguration, error) {
	var config configuration.IngesterConfiguration
	userSpecifiedConfigs := viper.GetStringSlice(CustomConfigLocation)

	common.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs)
	common.ConfigureLogging(config.LogLevel, config.LogFormat)

	err := config.Validate()
	if err != nil {
		commonconfig.LogValidationErrors(err)
		return config, err
	}
	if err := config.ValidateIndexes(); err != nil {
		commonconfig.LogValidationErrors(err)
		return config, err
	}
	return config, nil
}
