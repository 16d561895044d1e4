//go:build linux

package restart

import "golang.org/x/sys/unix"

func reboot() error {
	unix.Sync()
	return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
}
