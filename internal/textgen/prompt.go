package textgen

import "strings"

// renderChatPrompt flattens chat turns into the [INST] instruction format
// used by llama-2 and mistral instruct GGUF models. System messages are
// folded into the first instruction.
func renderChatPrompt(msgs []Message) string {
	var b strings.Builder
	var system []string
	open := false
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			if open {
				b.WriteString(" ")
				b.WriteString(m.Content)
				b.WriteString(" </s>")
				open = false
			}
		default:
			if open {
				// consecutive user turns share one instruction
				b.WriteString("\n")
				b.WriteString(m.Content)
				continue
			}
			b.WriteString("<s>[INST] ")
			if len(system) > 0 {
				b.WriteString("<<SYS>>\n")
				b.WriteString(strings.Join(system, "\n"))
				b.WriteString("\n<</SYS>>\n\n")
				system = nil
			}
			b.WriteString(m.Content)
			open = true
		}
	}
	if open {
		b.WriteString(" [/INST]")
	}
	return b.String()
}
