//go:build linux

package main

import "syscall"

// rebootHost flushes filesystems and restarts the machine. It needs
// CAP_SYS_BOOT and only returns on failure.
func rebootHost() error {
	syscall.Sync()
	return syscall.Reboot(syscall.LINUX_REBOOT_CMD_RESTART)
}
