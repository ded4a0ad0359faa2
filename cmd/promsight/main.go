package main

import (
	"fmt"
	"os"

	"github.com/dushixiang/promsight/internal/app"
	"github.com/dushixiang/promsight/internal/config"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "promsight",
		Short:         "查询 Prometheus 指标并由大模型生成分析摘要",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "配置文件路径")

	rootCmd.AddCommand(
		newQueryCmd(),
		newChatCmd(),
		newGenerateCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

// setup 加载配置并组装应用
func setup() (*app.App, func(), error) {
	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		return nil, nil, err
	}
	return app.InitApp(cfg)
}
