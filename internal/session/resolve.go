package session

import "os"

const DefaultProfile = "default"

// Resolve determines the active profile name using precedence:
// 1. flagOverride (--profile flag)
// 2. COMFY_PROFILE environment variable
// 3. "default"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv("COMFY_PROFILE"); env != "" {
		return env
	}
	return DefaultProfile
}
