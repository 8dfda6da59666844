package prompttemplate

import (
	"go_backend/message"
	"go_backend/nativellama"
)

// chatTemplateModel is the minimal interface native mode needs, kept
// narrow so tests can substitute a fake without a compiled llama.cpp.
type chatTemplateModel interface {
	ApplyChatTemplate(messages []nativellama.ChatMessage, addAssistant bool) (string, error)
}

// ApplyNative invokes the native library's chat-template function
// (§4.F mode 1, preferred). Role strings use the fixed mapping
// system/user/assistant/tool.
func ApplyNative(model chatTemplateModel, messages []message.Message, addAssistant bool) (string, error) {
	native := make([]nativellama.ChatMessage, len(messages))
	for i, m := range messages {
		native[i] = nativellama.ChatMessage{Role: string(m.Role), Content: m.Content}
	}
	return model.ApplyChatTemplate(native, addAssistant)
}
