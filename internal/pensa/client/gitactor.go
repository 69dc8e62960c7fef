package client

import (
	"os/exec"
	"strings"
)

// gitUserName shells out to `git config user.name`, ignoring any
// failure (missing git, no config, not inside a repo) -- actor
// resolution must never hard-fail just because git isn't configured.
func gitUserName() string {
	out, err := exec.Command("git", "config", "user.name").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
