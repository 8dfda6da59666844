package prompttemplate

import (
	"fmt"
	"testing"

	"go_backend/message"
	"go_backend/nativellama"
)

func TestSelectByFilename(t *testing.T) {
	cases := []struct {
		filename string
		want     string
	}{
		{"qwen-7b-q4.gguf", "chatml"},
		{"llama-3-8b-instruct.Q4_K_M.gguf", "llama3"},
		{"llama2-13b-chat.gguf", "llama2"},
		{"alpaca-native.gguf", "alpaca"},
		{"vicuna-7b-v1.5.gguf", "vicuna"},
		{"Phi-3-mini-4k-instruct.gguf", "phi-3"},
		{"some-random-model.gguf", "chatml"},
	}
	for _, c := range cases {
		t.Run(c.filename, func(t *testing.T) {
			got := SelectByFilename(c.filename)
			if got.Name != c.want {
				t.Fatalf("SelectByFilename(%q) = %q, want %q", c.filename, got.Name, c.want)
			}
		})
	}
}

func TestChatMLFormatIncludesAssistantOpener(t *testing.T) {
	tmpl := Registry["chatml"]
	out := tmpl.Format([]message.Message{{Role: message.RoleUser, Content: "Hi"}})
	if want := "<|im_start|>user\nHi<|im_end|>\n<|im_start|>assistant\n"; out != want {
		t.Fatalf("Format() = %q, want %q", out, want)
	}
}

type fakeTemplateModel struct {
	called []nativellama.ChatMessage
}

func (f *fakeTemplateModel) ApplyChatTemplate(messages []nativellama.ChatMessage, addAssistant bool) (string, error) {
	f.called = messages
	return fmt.Sprintf("native:%d:%v", len(messages), addAssistant), nil
}

func TestApplyNativeMapsRoles(t *testing.T) {
	fake := &fakeTemplateModel{}
	msgs := []message.Message{
		{Role: message.RoleSystem, Content: "s"},
		{Role: message.RoleUser, Content: "u"},
	}
	out, err := ApplyNative(fake, msgs, true)
	if err != nil {
		t.Fatal(err)
	}
	if out != "native:2:true" {
		t.Fatalf("unexpected native call result: %q", out)
	}
	if fake.called[0].Role != "system" || fake.called[1].Role != "user" {
		t.Fatalf("unexpected role mapping: %+v", fake.called)
	}
}
