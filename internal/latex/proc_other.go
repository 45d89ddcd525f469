//go:build !unix

package latex

import "os/exec"

// configureProcess relies on exec's default Cancel, which kills only the
// engine process itself.
func configureProcess(cmd *exec.Cmd, sandbox bool) {}
