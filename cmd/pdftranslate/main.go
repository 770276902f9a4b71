// pdftranslate 命令行：翻译 PDF 并保留原版面
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdf-layout-translator/internal/config"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

type globalOptions struct {
	configPath string
	envFile    string
	logLevel   string
	verbose    bool
}

func main() {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "pdftranslate",
		Short:         "Translate PDF documents while preserving their layout",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: ~/.config/pdf-layout-translator/config.json)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with API keys")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level: debug|info|warn|error")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "also log to stderr")

	root.AddCommand(
		translateCmd(opts),
		previewCmd(opts),
		serveJobsCmd(opts),
		failuresCmd(),
		languagesCmd(),
		fontsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

// setup 加载配置并初始化全局 logger
func setup(opts *globalOptions) (*types.Config, logger.Logger, error) {
	cm, err := config.NewConfigManager(opts.configPath, opts.envFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cm.Load(); err != nil {
		return nil, nil, err
	}
	cfg := cm.GetConfig()

	levelName := cfg.LogLevel
	if opts.logLevel != "" {
		levelName = opts.logLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrConfig, "invalid log level", err)
	}
	lc := logger.DefaultConfig()
	lc.LogFilePath = cfg.LogFile
	lc.Level = level
	lc.EnableConsole = opts.verbose
	if err := logger.Init(lc); err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, logger.GetLogger(), nil
}
