// Package prompttemplate derives or applies a chat template to an
// ordered message sequence, per §4.F.
package prompttemplate

import (
	"strings"

	"go_backend/message"
)

// Template is one named explicit chat-template family: a formatter plus
// the stop tokens that terminate its assistant turn.
type Template struct {
	Name       string
	StopTokens []string
	Format     func(messages []message.Message) string
}

// Registry of the named templates from §4.F mode 2.
var Registry = map[string]Template{
	"chatml":  chatMLTemplate,
	"llama2":  llama2Template,
	"llama3":  llama3Template,
	"alpaca":  alpacaTemplate,
	"vicuna":  vicunaTemplate,
	"phi-3":   phi3Template,
	"raw":     rawTemplate,
}

// filenameRules is ordered; the first matching substring wins. Matching
// is case-insensitive, per §4.F.
var filenameRules = []struct {
	substrings []string
	template   string
}{
	{[]string{"llama-3", "llama3"}, "llama3"},
	{[]string{"llama-2", "llama2"}, "llama2"},
	{[]string{"qwen", "openhermes", "mistral", "chatml"}, "chatml"},
	{[]string{"alpaca"}, "alpaca"},
	{[]string{"vicuna"}, "vicuna"},
	{[]string{"phi-3", "phi3"}, "phi-3"},
}

// SelectByFilename resolves a model filename to its explicit template,
// defaulting to ChatML when nothing matches.
func SelectByFilename(filename string) Template {
	lower := strings.ToLower(filename)
	for _, rule := range filenameRules {
		for _, s := range rule.substrings {
			if strings.Contains(lower, s) {
				return Registry[rule.template]
			}
		}
	}
	return Registry["chatml"]
}

func joinTurns(turns []string) string {
	return strings.Join(turns, "")
}

var chatMLTemplate = Template{
	Name:       "chatml",
	StopTokens: []string{"<|im_end|>", "<|endoftext|>"},
	Format: func(messages []message.Message) string {
		var turns []string
		for _, m := range messages {
			turns = append(turns, "<|im_start|>"+string(m.Role)+"\n"+m.Content+"<|im_end|>\n")
		}
		turns = append(turns, "<|im_start|>assistant\n")
		return joinTurns(turns)
	},
}

var llama2Template = Template{
	Name:       "llama2",
	StopTokens: []string{"</s>"},
	Format: func(messages []message.Message) string {
		var b strings.Builder
		var system string
		b.WriteString("<s>[INST] ")
		first := true
		for _, m := range messages {
			switch m.Role {
			case message.RoleSystem:
				system = m.Content
			case message.RoleUser:
				if first && system != "" {
					b.WriteString("<<SYS>>\n" + system + "\n<</SYS>>\n\n")
				}
				b.WriteString(m.Content + " [/INST]")
				first = false
			case message.RoleAssistant:
				b.WriteString(" " + m.Content + " </s><s>[INST] ")
			}
		}
		return b.String()
	},
}

var llama3Template = Template{
	Name:       "llama3",
	StopTokens: []string{"<|eot_id|>", "<|end_of_text|>"},
	Format: func(messages []message.Message) string {
		var turns []string
		turns = append(turns, "<|begin_of_text|>")
		for _, m := range messages {
			turns = append(turns, "<|start_header_id|>"+string(m.Role)+"<|end_header_id|>\n\n"+m.Content+"<|eot_id|>")
		}
		turns = append(turns, "<|start_header_id|>assistant<|end_header_id|>\n\n")
		return joinTurns(turns)
	},
}

var alpacaTemplate = Template{
	Name:       "alpaca",
	StopTokens: []string{"### Instruction:"},
	Format: func(messages []message.Message) string {
		var b strings.Builder
		for _, m := range messages {
			switch m.Role {
			case message.RoleSystem:
				b.WriteString(m.Content + "\n\n")
			case message.RoleUser:
				b.WriteString("### Instruction:\n" + m.Content + "\n\n")
			case message.RoleAssistant:
				b.WriteString("### Response:\n" + m.Content + "\n\n")
			}
		}
		b.WriteString("### Response:\n")
		return b.String()
	},
}

var vicunaTemplate = Template{
	Name:       "vicuna",
	StopTokens: []string{"USER:"},
	Format: func(messages []message.Message) string {
		var b strings.Builder
		for _, m := range messages {
			switch m.Role {
			case message.RoleSystem:
				b.WriteString(m.Content + "\n\n")
			case message.RoleUser:
				b.WriteString("USER: " + m.Content + "\n")
			case message.RoleAssistant:
				b.WriteString("ASSISTANT: " + m.Content + "\n")
			}
		}
		b.WriteString("ASSISTANT: ")
		return b.String()
	},
}

var phi3Template = Template{
	Name:       "phi-3",
	StopTokens: []string{"<|end|>"},
	Format: func(messages []message.Message) string {
		var turns []string
		for _, m := range messages {
			turns = append(turns, "<|"+string(m.Role)+"|>\n"+m.Content+"<|end|>\n")
		}
		turns = append(turns, "<|assistant|>\n")
		return joinTurns(turns)
	},
}

var rawTemplate = Template{
	Name:       "raw",
	StopTokens: nil,
	Format: func(messages []message.Message) string {
		var b strings.Builder
		for _, m := range messages {
			b.WriteString(m.Content)
		}
		return b.String()
	},
}
