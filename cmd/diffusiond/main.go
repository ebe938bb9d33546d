// Command diffusiond serves image generation and upscaling for one diffusion
// model loaded by the diffusion worker.
package main

import (
	"modelserve/internal/app"
	"modelserve/internal/config"
)

func main() {
	app.Execute(app.Command(config.ServiceImage, "diffusiond", "Diffusion image service", app.NewImage))
}
