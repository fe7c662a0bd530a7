package common

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	commonconfig "github.com/airportmatch/nearestairport/internal/common/config"
	"github.com/airportmatch/nearestairport/internal/common/health"
	"github.com/airportmatch/nearestairport/internal/common/logging"
)

const baseConfigFileName = "config"

// BindCommandlineArguments makes every flag in flags visible to viper. Flags left unset do not override config files.
func BindCommandlineArguments(flags *pflag.FlagSet) {
	err := viper.BindPFlags(flags)
	if err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

// LoadConfig reads the default config file found in defaultPath, then merges any user supplied config files
// on top of it in order, and finally applies environment overrides (INGESTER_POSTGRES_MAXATTEMPTS etc).
// The result is decoded into config.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string) *viper.Viper {
	v := viper.GetViper()
	v.SetConfigName(baseConfigFileName)
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		log.Errorf("Error reading base config path=%s name=%s: %v", defaultPath, baseConfigFileName, err)
		os.Exit(-1)
	}
	log.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			log.Errorf("Error reading config from %s: %v", overrideConfig, err)
			os.Exit(-1)
		}
		log.Infof("Read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("INGESTER")
	v.AutomaticEnv()

	if err := v.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		log.Error(err)
		os.Exit(-1)
	}
	return v
}

// ConfigureLogging sets up the standard logrus logger and counts its output by level. Unknown levels fall back
// to info.
func ConfigureLogging(level string, format string) {
	logging.InstallPrometheusHook()
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	}
	log.SetOutput(os.Stdout)

	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown log level %q, defaulting to info", level)
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

// ServeMetrics starts an http server exposing /metrics and /health on the supplied port. The returned function
// shuts the server down. A port of zero disables the server.
func ServeMetrics(port uint16, checker health.Checker) (shutdown func()) {
	if port == 0 {
		log.Info("Metrics port is 0, not serving metrics")
		return func() {}
	}
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	if checker != nil {
		health.Mount(r, checker)
	}
	return ServeHttp(port, r)
}

// ServeHttp starts serving handler on port in the background and returns a function that shuts it down.
func ServeHttp(port uint16, handler http.Handler) (shutdown func()) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	go func() {
		log.Infof("Starting http server listening on %d", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Errorf("http server on port %d failed", port)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Infof("Stopping http server listening on %d", port)
		if err := srv.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("http server did not shut down cleanly")
		}
	}
}
