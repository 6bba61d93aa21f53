package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/config"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "列出可用模型",
	Run:   runModels,
}

var modelsUseCmd = &cobra.Command{
	Use:   "use NAME",
	Short: "设置默认模型",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.SetModel(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "✗ 保存模型失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ 默认模型: %s\n", args[0])
	},
}

func init() {
	modelsCmd.AddCommand(modelsUseCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) {
	requireLogin()
	client := newClient()

	var models []api.Model
	err := withRefresh(cmd.Context(), client, func() (err error) {
		models, err = client.ListModels(cmd.Context())
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 获取模型失败: %v\n", err)
		os.Exit(1)
	}

	current := config.GetModel()
	for _, m := range models {
		mark := " "
		if m.Name == current || (current == "" && m.Default) {
			mark = "*"
		}
		fmt.Printf(" %s %-32s %s\n", mark, m.Name, m.Provider)
	}
}

// pickModel 按 flag、配置、服务器默认的顺序选择模型
func pickModel(flagModel string, models []api.Model) string {
	if flagModel != "" {
		return flagModel
	}
	if m := config.GetModel(); m != "" {
		return m
	}
	for _, m := range models {
		if m.Default {
			return m.Name
		}
	}
	if len(models) > 0 {
		return models[0].Name
	}
	return ""
}
