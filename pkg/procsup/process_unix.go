package procsup

import "syscall"

// processAlive reports whether pid (or, if negative, the process group
// -pid) still has at least one live member, by probing with signal 0.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)

	return err == nil
}
