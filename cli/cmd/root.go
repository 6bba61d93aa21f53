// Package cmd 实现 CLI 命令
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/config"
	"pocket-chat/cli/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "pocket-chat",
	Short: "Pocket Chat - 终端里的 AI 聊天客户端",
	Long: `Pocket Chat CLI 客户端

在终端里与 AI 模型对话：发送、编辑重发、重新生成、删除、引用、Pin 和附件。

直接运行即可开始使用，程序会引导你完成登录。`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// 在 init 中赋值以避免初始化循环
	rootCmd.Run = runInteractive

	cobra.OnInitialize(initConfig)

	// 全局参数
	rootCmd.PersistentFlags().StringP("server", "s", "", "服务器地址 (默认: http://localhost:8080)")
	rootCmd.PersistentFlags().Bool("debug", false, "调试日志输出到 stderr")
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "初始化配置失败: %v\n", err)
		os.Exit(1)
	}

	// 如果指定了服务器地址，更新配置
	if server, _ := rootCmd.PersistentFlags().GetString("server"); server != "" {
		config.SetServerURL(server)
	}
}

// runInteractive 交互式主流程：登录后直接进入聊天
func runInteractive(cmd *cobra.Command, args []string) {
	printBanner(cmd.OutOrStdout())

	if config.IsLoggedIn() {
		fmt.Printf("检测到已保存的登录信息: %s\n", config.GetUsername())
		if !askYesNo("是否使用已保存的登录信息？") {
			doInteractiveLogin(cmd.Context(), false)
		}
		fmt.Println()
	} else {
		doInteractiveLogin(cmd.Context(), false)
	}

	runChat(cmd, chatOptions{})
}

func printBanner(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║         💬 Pocket Chat CLI 客户端               ║")
	fmt.Fprintln(w, "║                                                ║")
	fmt.Fprintln(w, "║   输入 /help 查看可用命令                        ║")
	fmt.Fprintln(w, "╚════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
}

// newLogger 根据 --debug 构建日志器
func newLogger() (zerolog.Logger, io.Closer) {
	debug, _ := rootCmd.PersistentFlags().GetBool("debug")
	dir := ""
	if config.Dir() != "" {
		dir = config.Dir() + string(os.PathSeparator) + "logs"
	}
	logger, closer, err := logging.New(logging.Options{Dir: dir, Debug: debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
	}
	return logger, closer
}

// newClient 使用已保存的凭证创建 API 客户端
func newClient() *api.Client {
	client := api.NewClient(config.GetServerURL(), config.GetTimeout())
	client.SetAccessToken(config.GetAccessToken())
	return client
}

// requireLogin 未登录时退出
func requireLogin() {
	if !config.IsLoggedIn() {
		fmt.Fprintln(os.Stderr, "✗ 当前未登录，请先运行 'pocket-chat login'")
		os.Exit(1)
	}
}

// withRefresh 调用 fn，遇到 401 时使用 refresh token 续期后重试一次
func withRefresh(ctx context.Context, client *api.Client, fn func() error) error {
	err := fn()
	if err == nil || !api.IsStatus(err, http.StatusUnauthorized) || config.GetRefreshToken() == "" {
		return err
	}

	resp, rerr := client.Refresh(ctx, config.GetRefreshToken())
	if rerr != nil {
		return err
	}
	if serr := config.SaveAuth(resp.AccessToken, resp.RefreshToken, config.GetUsername()); serr != nil {
		return serr
	}
	client.SetAccessToken(resp.AccessToken)
	return fn()
}

// askYesNo 询问是否
func askYesNo(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [Y/n]: ", question)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "" || answer == "y" || answer == "yes"
}
