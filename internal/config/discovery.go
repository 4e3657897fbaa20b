package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Discover resolves the configuration file path per the fixed search
// order: an explicit override, then $XDG_CONFIG_HOME/hypr/hypridle.conf,
// then $HOME/.config/hypr/hypridle.conf, then each directory in
// $XDG_CONFIG_DIRS, then /etc/hypr/hypridle.conf. Absence of any
// candidate is a fatal error.
func Discover(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("config override %q: %w", override, err)
		}
		return override, nil
	}

	var candidates []string

	if xch := os.Getenv("XDG_CONFIG_HOME"); xch != "" {
		candidates = append(candidates, filepath.Join(xch, "hypr", "hypridle.conf"))
	}
	if home := os.Getenv("HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, ".config", "hypr", "hypridle.conf"))
	}
	if dirs := os.Getenv("XDG_CONFIG_DIRS"); dirs != "" {
		for _, d := range strings.Split(dirs, ":") {
			if d == "" {
				continue
			}
			candidates = append(candidates, filepath.Join(d, "hypr", "hypridle.conf"))
		}
	}
	candidates = append(candidates, "/etc/hypr/hypridle.conf")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", fmt.Errorf("no hypridle.conf found in any of: %s", strings.Join(candidates, ", "))
}
