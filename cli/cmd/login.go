package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pocket-chat/cli/internal/config"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "登录账号",
	Long: `使用用户名和密码登录，凭证保存在 ~/.pocket-chat/config.yaml。

加上 --register 会先注册新账号。`,
	Run: func(cmd *cobra.Command, args []string) {
		register, _ := cmd.Flags().GetBool("register")
		doInteractiveLogin(cmd.Context(), register)
	},
}

func init() {
	loginCmd.Flags().Bool("register", false, "注册新账号")
	rootCmd.AddCommand(loginCmd)
}

func doInteractiveLogin(ctx context.Context, register bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	reader := bufio.NewReader(os.Stdin)

	if register {
		fmt.Println("📝 注册新账号")
	} else {
		fmt.Println("🔐 开始登录")
	}
	fmt.Println("─────────────────────────────────")
	fmt.Println()

	// 输入用户名
	fmt.Print("请输入用户名: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if username == "" {
		fmt.Fprintln(os.Stderr, "✗ 用户名不能为空")
		os.Exit(1)
	}

	// 输入密码（隐藏输入）
	fmt.Print("请输入密码: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 读取密码失败: %v\n", err)
		os.Exit(1)
	}
	password := strings.TrimSpace(string(passwordBytes))
	if password == "" {
		fmt.Fprintln(os.Stderr, "✗ 密码不能为空")
		os.Exit(1)
	}
	fmt.Println()

	client := newClient()
	if register {
		if _, err := client.Register(ctx, username, password); err != nil {
			fmt.Fprintf(os.Stderr, "✗ 注册失败: %v\n", err)
			os.Exit(1)
		}
	}

	loginResp, err := client.Login(ctx, username, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 登录失败: %v\n", err)
		os.Exit(1)
	}
	if err := config.SaveAuth(loginResp.AccessToken, loginResp.RefreshToken, username); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 保存登录信息失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ 登录成功！")
	fmt.Println("─────────────────────────────────")
	fmt.Printf("  👤 账号: %s\n", username)
	fmt.Printf("  📡 服务器: %s\n", config.GetServerURL())
	fmt.Println()
}
