package timeline

// Timeline 某个聊天的消息快照，按插入顺序排列
// 快照一旦产生就不再修改，任何变更都会生成新的切片
type Timeline []*Message

// IndexOf 返回指定 Key 的位置，不存在返回 -1
func (t Timeline) IndexOf(id Key) int {
	for i, m := range t {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Find 根据 Key 查找消息
func (t Timeline) Find(id Key) *Message {
	if i := t.IndexOf(id); i >= 0 {
		return t[i]
	}
	return nil
}

// FindByChatMessageID 根据后端 ID 查找消息
func (t Timeline) FindByChatMessageID(chatMessageID string) *Message {
	if chatMessageID == "" {
		return nil
	}
	for _, m := range t {
		if m.ChatMessageID == chatMessageID {
			return m
		}
	}
	return nil
}

// LoadingCount 统计处于加载中的消息数量
func (t Timeline) LoadingCount() int {
	n := 0
	for _, m := range t {
		if m.IsLoading {
			n++
		}
	}
	return n
}

// Action 时间线变更动作
// 只有本包内定义的四种动作：Append、ReplaceByID、TruncateFrom、RemoveByIDs
type Action interface {
	apply(Timeline) Timeline
}

// Append 在末尾追加消息（通常是一个 Turn 的用户消息和占位消息）
type Append struct {
	Messages []*Message
}

func (a Append) apply(t Timeline) Timeline {
	if len(a.Messages) == 0 {
		return t
	}
	next := make(Timeline, 0, len(t)+len(a.Messages))
	next = append(next, t...)
	for _, m := range a.Messages {
		if m == nil {
			continue
		}
		next = append(next, m.Clone())
	}
	return next
}

// ReplaceByID 更新恰好一条消息
// Patch 作用于消息副本，其余元素保持原指针不变
type ReplaceByID struct {
	ID    Key
	Patch func(*Message)
}

func (a ReplaceByID) apply(t Timeline) Timeline {
	i := t.IndexOf(a.ID)
	if i < 0 || a.Patch == nil {
		// 占位消息可能已被用户删除或截断，迟到的响应直接忽略
		return t
	}

	old := t[i]
	updated := old.Clone()
	a.Patch(updated)

	// Key 不可变，后端 ID 一旦分配也不可变
	updated.ID = old.ID
	if old.ChatMessageID != "" {
		updated.ChatMessageID = old.ChatMessageID
	}

	if updated.equal(old) {
		return t
	}

	next := make(Timeline, len(t))
	copy(next, t)
	next[i] = updated
	return next
}

// TruncateFrom 删除指定消息及其之后的所有消息
type TruncateFrom struct {
	ID Key
}

func (a TruncateFrom) apply(t Timeline) Timeline {
	i := t.IndexOf(a.ID)
	if i < 0 {
		return t
	}
	next := make(Timeline, i)
	copy(next, t[:i])
	return next
}

// RemoveByIDs 删除给定的消息，其余消息保持原有顺序
type RemoveByIDs struct {
	IDs map[Key]struct{}
}

// NewKeySet 构造 RemoveByIDs 使用的 Key 集合
func NewKeySet(keys ...Key) map[Key]struct{} {
	set := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func (a RemoveByIDs) apply(t Timeline) Timeline {
	if len(a.IDs) == 0 {
		return t
	}
	next := make(Timeline, 0, len(t))
	for _, m := range t {
		if _, drop := a.IDs[m.ID]; drop {
			continue
		}
		next = append(next, m)
	}
	if len(next) == len(t) {
		return t
	}
	return next
}

// Reduce 对快照应用一个动作，返回新快照
func Reduce(t Timeline, action Action) Timeline {
	if action == nil {
		return t
	}
	return action.apply(t)
}
