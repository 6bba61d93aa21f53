package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"pocket-chat/cli/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示当前状态",
	Long: `显示当前登录状态和配置信息。

包括：
- 服务器地址
- 登录状态
- 默认模型`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	fmt.Println("╔════════════════════════════════════════════════╗")
	fmt.Println("║           Pocket Chat 状态信息                  ║")
	fmt.Println("╠════════════════════════════════════════════════╣")

	fmt.Printf("║  服务器: %s\n", config.GetServerURL())
	fmt.Printf("║  推送: %s\n", config.GetWSURL())

	if config.IsLoggedIn() {
		fmt.Println("║  登录状态: ✓ 已登录")
		fmt.Printf("║  账号: %s\n", config.GetUsername())
	} else {
		fmt.Println("║  登录状态: ✗ 未登录")
		fmt.Println("║")
		fmt.Println("║  请运行 'pocket-chat login' 完成登录")
	}

	if model := config.GetModel(); model != "" {
		fmt.Printf("║  模型: %s\n", model)
	} else {
		fmt.Println("║  模型: (使用服务器默认)")
	}
	if id, err := config.GetDeviceUUID(); err == nil {
		fmt.Printf("║  设备: %s\n", id)
	}

	fmt.Println("╚════════════════════════════════════════════════╝")
}
