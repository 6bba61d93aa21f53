package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pocket-chat/cli/internal/api"
	"pocket-chat/cli/internal/attachment"
	"pocket-chat/cli/internal/chat"
	"pocket-chat/cli/internal/config"
	"pocket-chat/cli/internal/pin"
	"pocket-chat/cli/internal/websocket"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "进入交互式聊天",
	Long: `进入交互式聊天。

--chat 打开已有聊天，否则第一条消息会创建新聊天。输入 /help 查看命令。`,
	Run: func(cmd *cobra.Command, args []string) {
		chatID, _ := cmd.Flags().GetString("chat")
		model, _ := cmd.Flags().GetString("model")
		runChat(cmd, chatOptions{chatID: chatID, model: model})
	},
}

type chatOptions struct {
	chatID string
	model  string
}

func init() {
	chatCmd.Flags().String("chat", "", "打开已有聊天")
	chatCmd.Flags().StringP("model", "m", "", "使用的模型")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, opts chatOptions) {
	requireLogin()

	ctx, cancel := context.WithCancel(contextOf(cmd))
	defer cancel()

	logger, closer := newLogger()
	defer closer.Close()

	client := newClient()
	var models []api.Model
	err := withRefresh(ctx, client, func() (err error) {
		models, err = client.ListModels(ctx)
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ 连接服务器失败: %v\n", err)
		os.Exit(1)
	}
	model := pickModel(opts.model, models)

	pins := pin.NewRemoteStore(client)
	if err := pins.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("load pins failed")
	}

	// repl 在 session 之后创建，回调通过闭包延迟绑定
	var r *repl
	var onUpload func([]attachment.Attachment)
	tracker := attachment.NewTracker(uploader(client), config.GetUploadConcurrent(), func(list []attachment.Attachment) {
		if onUpload != nil {
			onUpload(list)
		}
	})

	session := chat.New(chat.Options{
		Gateway:     client,
		Pins:        pins,
		Attachments: tracker,
		Notifier: chat.NotifierFunc(func(n chat.Notice) {
			if r != nil {
				r.notify(n)
			}
		}),
		Logger: &logger,
		Model:  model,
		User:   config.GetUsername(),
	})
	r = newREPL(session, tracker, pins, cmd.OutOrStdout())
	onUpload = r.onAttachments()

	if opts.chatID != "" {
		if err := session.OpenChat(ctx, opts.chatID); err != nil {
			os.Exit(1)
		}
		r.printHistory()
	}

	ws := websocket.NewClient(config.GetWSURL(), config.GetAccessToken(),
		websocket.NewBridge(session, pins, logger, func(msg string) { r.printf("[info] %s\n", msg) }),
		logger)
	if err := ws.Connect(ctx); err != nil {
		// 推送只用于多设备同步，连不上不影响聊天
		logger.Warn().Err(err).Msg("event stream unavailable")
	} else {
		defer ws.Disconnect()
	}

	// Ctrl+C 在等待回复时停止生成，否则退出
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for sig := range sigChan {
			if sig == os.Interrupt && session.Stop() {
				r.printf("stopped\n")
				continue
			}
			cancel()
			fmt.Println()
			os.Exit(0)
		}
	}()

	if model == "" {
		fmt.Println("⚠️  服务器没有可用模型，使用 /model 选择")
	} else {
		fmt.Printf("💬 模型: %s  (/help 查看命令)\n", model)
	}

	if err := r.run(ctx, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "✗ 读取输入失败: %v\n", err)
	}
	if m := session.Model(); m != "" && m != config.GetModel() {
		_ = config.SetModel(m)
	}
}

// uploader 把附件上传接到文档接口
func uploader(client *api.Client) attachment.Uploader {
	return attachment.UploaderFunc(func(ctx context.Context, name string, r io.Reader, size int64, progress func(int)) (attachment.Result, error) {
		doc, err := client.UploadDocument(ctx, name, r, size, progress)
		if err != nil {
			return attachment.Result{}, err
		}
		return attachment.Result{DocumentID: doc.DocumentID.String(), URL: doc.DocumentURL}, nil
	})
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
