// @title           VLM Gateway API
// @version         1.0.0
// @description     Routes image+query requests to teacher and student vision-language backends and records human feedback as SFT and DPO training data.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var logLevel = "info"

type ServerFlags struct {
	ConfigPath string
	ListenAddr string
}

func (f *ServerFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", f.ConfigPath,
		"Optional YAML file overriding timeouts, prompt suffix and dataset layout")
	fs.StringVar(&f.ListenAddr, "listen", f.ListenAddr,
		"Address to listen on (default :$PORT)")
}

var serverFlags = &ServerFlags{}

var rootCmd = &cobra.Command{
	Use:   "vlm-gateway",
	Short: "Gateway in front of teacher and student vision-language models",
	Long: `vlm-gateway serves one HTTP API over two inference backends: a large
teacher model and a smaller student model. Reviewers can submit pass/fail
and preference feedback, which is stored as SFT and DPO datasets.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			log.WithError(err).Fatal("cannot parse log-level")
		}
		log.SetLevel(level)
		log.Debug("debug logging enabled")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), serverFlags, cmd.Flags().Changed("log-level"))
	},
}

func main() {
	formatter := new(log.TextFormatter)
	formatter.TimestampFormat = "2006-01-02T15:04:05.999Z07:00"
	formatter.FullTimestamp = true
	log.SetFormatter(formatter)

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (trace,debug,info,warn,error) (default info, or LOG_LEVEL)")
	serverFlags.BindFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("could not execute root command")
	}
}
