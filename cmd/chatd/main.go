// Command chatd serves text and chat completions for one causal language
// model, either in-process through llama.cpp or forwarded to an
// OpenAI-compatible runtime.
package main

import (
	"modelserve/internal/app"
	"modelserve/internal/config"
)

func main() {
	app.Execute(app.Command(config.ServiceText, "chatd", "Text completion service", app.NewText))
}
