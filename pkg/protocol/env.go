package protocol

import "fmt"

// Environment keys accepted by CommandSetEnv.
const (
	EnvTitle            = "title"
	EnvOutputAnimation  = "output_animation"
	EnvAutoScrollBottom = "auto_scroll_bottom"
	EnvHTTPPullInterval = "http_pull_interval"
)

var envKeys = map[string]bool{
	EnvTitle:            true,
	EnvOutputAnimation:  true,
	EnvAutoScrollBottom: true,
	EnvHTTPPullInterval: true,
}

// ValidateEnv checks an environment spec against the accepted key set.
// The first unknown key is reported; values are not type-checked, the
// client ignores settings it cannot apply.
func ValidateEnv(spec map[string]any) error {
	for key := range spec {
		if !envKeys[key] {
			return fmt.Errorf("protocol: unknown environment key %q", key)
		}
	}
	return nil
}
