package config

import "strings"

// Service identifies which binary a configuration is for.
type Service string

const (
	ServiceText  Service = "text"
	ServiceImage Service = "image"
)

// Defaults returns the baseline configuration for svc.
func Defaults(svc Service) Config {
	c := Config{
		Addr:                ":8000",
		RoutePrefix:         "/v1",
		Device:              "cpu",
		ModelsDir:           "./ml/models",
		MaxQueueDepth:       32,
		MaxInflight:         1,
		MaxWaitSeconds:      30,
		InferTimeoutSeconds: 0,
		CORSAllowedOrigins:  []string{"*"},
		CORSAllowedMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		CORSAllowedHeaders:  []string{"*"},
		LogLevel:            "info",
		LogFormat:           "console",
	}
	switch svc {
	case ServiceImage:
		c.ModelID = "stabilityai/stable-diffusion-2-1"
		c.WorkerURL = "http://127.0.0.1:8001"
		c.EncodeWorkers = 4
		c.MaxImageSide = 4096
		c.MaxBodyBytes = 20 << 20
	default:
		c.ModelID = "mistral-7b-instruct-v0.1.Q5_0"
		c.Backend = "llamacpp"
		c.LlamaContext = 2048
		c.LlamaThreads = 4
		c.MaxBodyBytes = 1 << 20
	}
	return c
}

// Merge returns base with every non-zero field of over applied.
func Merge(base, over Config) Config {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	list := func(dst *[]string, v []string) {
		if len(v) > 0 {
			*dst = v
		}
	}
	str(&base.Addr, over.Addr)
	str(&base.RoutePrefix, over.RoutePrefix)
	str(&base.ModelID, over.ModelID)
	str(&base.Device, over.Device)
	str(&base.ModelsDir, over.ModelsDir)
	str(&base.Backend, over.Backend)
	str(&base.RuntimeURL, over.RuntimeURL)
	str(&base.RuntimeAPIKey, over.RuntimeAPIKey)
	num(&base.LlamaContext, over.LlamaContext)
	num(&base.LlamaThreads, over.LlamaThreads)
	num(&base.GPULayers, over.GPULayers)
	str(&base.WorkerURL, over.WorkerURL)
	num(&base.EncodeWorkers, over.EncodeWorkers)
	num(&base.MaxImageSide, over.MaxImageSide)
	if over.MaxBodyBytes != 0 {
		base.MaxBodyBytes = over.MaxBodyBytes
	}
	num(&base.InferTimeoutSeconds, over.InferTimeoutSeconds)
	num(&base.MaxQueueDepth, over.MaxQueueDepth)
	num(&base.MaxInflight, over.MaxInflight)
	num(&base.MaxWaitSeconds, over.MaxWaitSeconds)
	list(&base.CORSAllowedOrigins, over.CORSAllowedOrigins)
	list(&base.CORSAllowedMethods, over.CORSAllowedMethods)
	list(&base.CORSAllowedHeaders, over.CORSAllowedHeaders)
	str(&base.LogLevel, over.LogLevel)
	str(&base.LogFormat, over.LogFormat)
	return base
}

// NormalizePrefix returns p with one leading slash and no trailing slash.
// An empty or "/" prefix mounts routes at the root.
func NormalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
