package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dushixiang/promsight/internal/llm"
	"github.com/dushixiang/promsight/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newQueryCmd() *cobra.Command {
	var (
		req    service.QueryRequest
		format string
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "执行一次查询并输出数据表与分析结果",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "csv":
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}

			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := a.Query.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result, format)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&req.Query, "query", "q", "", "PromQL 查询语句，默认取配置 query.query；chunked 模式下非向量选择器改用 query_range")
	flags.StringVar(&req.Start, "start", "", "开始时间 YYYY-MM-DD HH:MM:SS")
	flags.StringVar(&req.End, "end", "", "结束时间 YYYY-MM-DD HH:MM:SS")
	flags.StringVarP(&req.Range, "range", "r", "", "相对时间范围，如 1m / 2h / 7d")
	flags.StringVarP(&req.Step, "step", "s", "", "步长，如 15s / 1m")
	flags.BoolVar(&req.SkipAnalysis, "no-ai", false, "只输出数据，不调用模型")
	flags.StringVarP(&format, "format", "f", "text", "输出格式: text / json / csv")
	return cmd
}

func printResult(out io.Writer, result *service.QueryResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "csv":
		return result.Table.WriteCSV(out)
	}

	fmt.Fprintf(out, "查询: %s\n", result.Query)
	fmt.Fprintf(out, "时间: %s ~ %s（步长 %s）\n\n",
		result.Window.Start.Format(time.DateTime),
		result.Window.End.Format(time.DateTime),
		result.Step)
	if result.NoData {
		fmt.Fprintln(out, "未获取到数据")
	} else {
		fmt.Fprint(out, result.Table.String())
	}
	if result.Report != "" {
		fmt.Fprintf(out, "\n分析结果:\n%s\n", result.Report)
	}
	return nil
}

func newChatCmd() *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "与模型进行多轮对话，输入 exit 退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()
			return chatLoop(cmd.Context(), a.Analysis, system, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&system, "system", "你是一个智能助手", "系统提示词")
	return cmd
}

func chatLoop(ctx context.Context, analysis *service.AnalysisService, system string, in io.Reader, out io.Writer) error {
	var messages []llm.Message
	if system != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: line})
		reply, err := analysis.Chat(ctx, messages)
		if err != nil {
			// 撤回未得到回复的提问
			messages = messages[:len(messages)-1]
			fmt.Fprintln(out, "模型服务不可用:", err)
			continue
		}
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: reply})
		fmt.Fprintln(out, reply)
	}
}

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <prompt>",
		Short: "单轮生成",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			reply, err := a.Analysis.Generate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = a.Config.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := a.PruneHistory(ctx); err != nil {
				a.Logger.Warn("清理分析历史失败", zap.Error(err))
			}

			go func() {
				a.Logger.Info("HTTP 服务启动", zap.String("addr", addr))
				if err := a.Router.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.Logger.Error("HTTP 服务异常退出", zap.Error(err))
					stop()
				}
			}()

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.Logger.Info("HTTP 服务关闭")
			return a.Router.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "监听地址，默认取配置 server.addr")
	return cmd
}
