package textgen

import "testing"

func TestRenderChatPrompt(t *testing.T) {
	cases := []struct {
		name string
		in   []Message
		want string
	}{
		{"single user", []Message{{Role: "user", Content: "hi"}}, "<s>[INST] hi [/INST]"},
		{
			"system folded",
			[]Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}},
			"<s>[INST] <<SYS>>\nbe brief\n<</SYS>>\n\nhi [/INST]",
		},
		{
			"multi turn",
			[]Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}, {Role: "user", Content: "c"}},
			"<s>[INST] a [/INST] b </s><s>[INST] c [/INST]",
		},
		{"consecutive user", []Message{{Role: "user", Content: "a"}, {Role: "user", Content: "b"}}, "<s>[INST] a\nb [/INST]"},
		{"empty", nil, ""},
	}
	for _, c := range cases {
		if got := renderChatPrompt(c.in); got != c.want {
			t.Fatalf("%s: got %q want %q", c.name, got, c.want)
		}
	}
}
