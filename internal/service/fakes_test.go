package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// fakePlatform implements the platform capability interfaces in memory.
type fakePlatform struct {
	mu sync.Mutex

	conversations map[string]platform.ConversationInfo
	histories     map[string][]platform.Message
	managers      map[string]bool
	usernames     map[string]string

	logFiles []deliveredFile
	dmFiles  []deliveredFile
	deleted  []string
	renames  map[string]string
	edits    int

	nextConvID int
	nextMsgID  int

	failHistory    bool
	failSendFile   bool
	failDirectFile bool
	failEdit       bool
	failRename     bool
}

type deliveredFile struct {
	target   string
	filename string
	body     string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		conversations: make(map[string]platform.ConversationInfo),
		histories:     make(map[string][]platform.Message),
		managers:      make(map[string]bool),
		usernames:     make(map[string]string),
		renames:       make(map[string]string),
	}
}

func (f *fakePlatform) addConversation(id, name, parentID string, history []platform.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[id] = platform.ConversationInfo{ID: id, Name: name, ParentID: parentID}
	f.histories[id] = history
}

func (f *fakePlatform) CreateRestricted(ctx context.Context, in platform.CreateConversationInput) (platform.ConversationInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextConvID++
	info := platform.ConversationInfo{
		ID:       fmt.Sprintf("conv-%d", f.nextConvID),
		Name:     in.Name,
		ParentID: in.ParentID,
	}
	f.conversations[info.ID] = info
	return info, nil
}

func (f *fakePlatform) Info(ctx context.Context, conversationID string) (platform.ConversationInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.conversations[conversationID]
	if !ok {
		return platform.ConversationInfo{}, errors.New("unknown conversation")
	}
	return info, nil
}

func (f *fakePlatform) Rename(ctx context.Context, conversationID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRename {
		return errors.New("rename refused")
	}
	info, ok := f.conversations[conversationID]
	if !ok {
		return errors.New("unknown conversation")
	}
	info.Name = name
	f.conversations[conversationID] = info
	f.renames[conversationID] = name
	return nil
}

func (f *fakePlatform) Delete(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conversations, conversationID)
	f.deleted = append(f.deleted, conversationID)
	return nil
}

func (f *fakePlatform) ListUnder(ctx context.Context, parentID string) ([]platform.ConversationInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platform.ConversationInfo, 0)
	for _, info := range f.conversations {
		if info.ParentID == parentID {
			out = append(out, info)
		}
	}
	return out, nil
}

func (f *fakePlatform) SendFields(ctx context.Context, conversationID, content, title string, fields []platform.EmbedField) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextMsgID++
	msg := platform.Message{
		ID:        fmt.Sprintf("msg-%d", f.nextMsgID),
		AuthorID:  "bot",
		Bot:       true,
		Timestamp: time.Now().UTC(),
		Title:     title,
		Fields:    fields,
	}
	// history is newest first, like the real platform
	f.histories[conversationID] = append([]platform.Message{msg}, f.histories[conversationID]...)
	return msg.ID, nil
}

func (f *fakePlatform) EditFields(ctx context.Context, conversationID, messageID, title string, fields []platform.EmbedField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEdit {
		return errors.New("edit refused")
	}
	msgs := f.histories[conversationID]
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Title = title
			msgs[i].Fields = fields
			f.edits++
			return nil
		}
	}
	return errors.New("message not found")
}

func (f *fakePlatform) History(ctx context.Context, conversationID string, limit int) ([]platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHistory {
		return nil, errors.New("history unavailable")
	}
	msgs := f.histories[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]platform.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *fakePlatform) SendFile(ctx context.Context, conversationID, content, filename string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSendFile {
		return errors.New("send refused")
	}
	f.logFiles = append(f.logFiles, deliveredFile{target: conversationID, filename: filename, body: string(data)})
	return nil
}

func (f *fakePlatform) DirectFile(ctx context.Context, userID, content, filename string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDirectFile {
		return errors.New("dm refused")
	}
	f.dmFiles = append(f.dmFiles, deliveredFile{target: userID, filename: filename, body: string(data)})
	return nil
}

func (f *fakePlatform) HasManagerRole(ctx context.Context, actorID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.managers[actorID], nil
}

func (f *fakePlatform) Username(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, ok := f.usernames[userID]; ok {
		return name, nil
	}
	return "", errors.New("unknown user")
}

func (f *fakePlatform) summaryOf(conversationID string) *platform.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.histories[conversationID]
	for i := range msgs {
		if msgs[i].Bot && len(msgs[i].Fields) > 0 {
			out := msgs[i]
			return &out
		}
	}
	return nil
}
