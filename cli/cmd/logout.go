package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pocket-chat/cli/internal/config"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "登出并清除本地凭证",
	Long: `登出当前账号：通知服务器作废 Token，并清除本地保存的凭证。

登出后需要重新运行 'pocket-chat login' 才能使用。`,
	Run: runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(cmd *cobra.Command, args []string) {
	if !config.IsLoggedIn() {
		fmt.Println("当前未登录")
		return
	}

	// 服务器不可达时仍然清除本地凭证
	if err := newClient().Logout(cmd.Context()); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  服务器登出失败: %v\n", err)
	}

	if err := config.ClearToken(); err != nil {
		fmt.Fprintf(os.Stderr, "清除凭证失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ 已登出并清除本地凭证")
}
