//go:build windows

package main

import "os/exec"

// Windows has no Setsid; the child already outlives the parent console.
func configureDaemonProc(cmd *exec.Cmd) {}
