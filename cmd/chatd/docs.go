package main

// General API documentation for swaggo. Generate with
// `swag init -g cmd/chatd/docs.go -d ./,./internal/httpapi`.
//
// @title           chatd API
// @version         1.0
// @description     Text and chat completions for a single causal language model.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /v1
//
// @schemes http
