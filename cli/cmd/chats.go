package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pocket-chat/cli/internal/api"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "列出聊天",
	Run:   runChats,
}

func init() {
	rootCmd.AddCommand(chatsCmd)
}

func runChats(cmd *cobra.Command, args []string) {
	requireLogin()
	client := newClient()

	var chats []api.Chat
	err := withRefresh(cmd.Context(), client, func() (err error) {
		chats, err = client.ListChats(cmd.Context())
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 获取聊天失败: %v\n", err)
		os.Exit(1)
	}
	if len(chats) == 0 {
		fmt.Println("还没有聊天，运行 'pocket-chat chat' 开始")
		return
	}
	for _, c := range chats {
		fmt.Printf("  %-10s %-40s %s\n", c.ID, c.Title, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
}
