//go:build unix

package latex

import (
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"
)

// configureProcess puts the engine in its own process group so a timeout
// kills every child it spawned. Sandboxed runs drop to nobody when root.
func configureProcess(cmd *exec.Cmd, sandbox bool) {
	sys := &syscall.SysProcAttr{Setpgid: true}
	if sandbox && os.Geteuid() == 0 {
		if cred, err := nobodyCredential(); err == nil {
			sys.Credential = cred
		}
	}
	cmd.SysProcAttr = sys
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

func nobodyCredential() (*syscall.Credential, error) {
	u, err := user.Lookup("nobody")
	if err != nil {
		return nil, err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, err
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, err
	}
	return &syscall.Credential{Uid: uint32(uid), Gid: uint32(gid)}, nil
}
