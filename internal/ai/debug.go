package ai

import (
	"os"
	"strings"
)

// parseAIDebugEnv reads CODEPOLICE_AI_DEBUG and returns (debugEnabled, promptsEnabled).
// Valid values:
//
//	"all" or "1" or "true" - enable both debug and prompts
//	"prompts" - enable only prompts
//	"none" or "0" or "false" or "" - disable all
func parseAIDebugEnv() (debug bool, prompts bool) {
	switch strings.TrimSpace(strings.ToLower(os.Getenv("CODEPOLICE_AI_DEBUG"))) {
	case "all", "1", "true":
		return true, true
	case "prompts":
		return false, true
	default:
		return false, false
	}
}
