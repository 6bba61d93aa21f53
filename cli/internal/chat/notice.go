package chat

// Level 提示级别
type Level string

// 提示级别常量
const (
	LevelInfo        Level = "info"
	LevelWarning     Level = "warning"
	LevelDestructive Level = "destructive"
)

// Notice 面向用户的提示
type Notice struct {
	Level       Level
	Title       string
	Description string
}

// Notifier 提示输出
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc 函数适配器
type NotifierFunc func(n Notice)

// Notify 实现 Notifier
func (f NotifierFunc) Notify(n Notice) {
	f(n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

// 常用提示文案
var (
	noticeNoModel = Notice{
		Level:       LevelWarning,
		Title:       "No model selected",
		Description: "Please select a model before sending a message.",
	}
	noticeEmptyPrompt = Notice{
		Level:       LevelWarning,
		Title:       "Empty message",
		Description: "Type a message before sending.",
	}
	noticeBusy = Notice{
		Level:       LevelWarning,
		Title:       "Response in progress",
		Description: "Please wait for the current response to finish.",
	}
	noticeUploadsPending = Notice{
		Level:       LevelWarning,
		Title:       "Upload in progress",
		Description: "Please wait for attachments to finish uploading.",
	}
	noticeMissingIdentifiers = Notice{
		Level:       LevelDestructive,
		Title:       "Cannot regenerate",
		Description: "Cannot regenerate: missing message identifiers.",
	}
	noticeStillGenerating = Notice{
		Level:       LevelWarning,
		Title:       "Message not ready",
		Description: "Message is still generating, try again in a moment.",
	}
	noticeUnknownMessage = Notice{
		Level:       LevelWarning,
		Title:       "Message not found",
		Description: "The message no longer exists in this chat.",
	}
	noticeNoChat = Notice{
		Level:       LevelWarning,
		Title:       "No chat",
		Description: "Start or open a chat first.",
	}
)
