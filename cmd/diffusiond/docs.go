package main

// General API documentation for swaggo. Generate with
// `swag init -g cmd/diffusiond/docs.go -d ./,./internal/httpapi`.
//
// @title           diffusiond API
// @version         1.0
// @description     Image generation and upscaling for a single diffusion model. Images are returned base64 PNG encoded.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /v1
//
// @schemes http
