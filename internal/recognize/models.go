package recognize

import (
	"fmt"
)

// Model aliases accepted on the command line and in configuration. Anything
// else is passed through to the service verbatim.
const (
	ModelFlash = "flash"
	ModelPlus  = "plus"
	ModelOCR   = "ocr"
)

var modelAliases = map[string]string{
	ModelFlash: "qwen3-vl-flash",
	ModelPlus:  "qwen3-vl-plus",
	ModelOCR:   "qwen-vl-ocr-latest",
}

// ResolveModel expands a model alias to the service's model identifier.
func ResolveModel(name string) string {
	if id, ok := modelAliases[name]; ok {
		return id
	}
	return name
}

// Service regions. Each region has its own OpenAI-compatible endpoint.
const (
	RegionBeijing   = "beijing"
	RegionSingapore = "singapore"
)

var regionEndpoints = map[string]string{
	RegionBeijing:   "https://dashscope.aliyuncs.com/compatible-mode/v1",
	RegionSingapore: "https://dashscope-intl.aliyuncs.com/compatible-mode/v1",
}

// EndpointFor returns the base URL for a region.
func EndpointFor(region string) (string, error) {
	url, ok := regionEndpoints[region]
	if !ok {
		return "", fmt.Errorf("unknown region: %s (valid: %s, %s)", region, RegionBeijing, RegionSingapore)
	}
	return url, nil
}

// Regions lists the known region names.
func Regions() []string {
	return []string{RegionBeijing, RegionSingapore}
}
