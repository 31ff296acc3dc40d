//go:build windows

package commands

import (
	"errors"
	"fmt"
	"os"
)

// stopProcess interrupts the server, or kills it when force is set.
func stopProcess(proc *os.Process, force bool) error {
	var err error
	if force {
		err = proc.Kill()
	} else {
		err = proc.Signal(os.Interrupt)
	}
	if errors.Is(err, os.ErrProcessDone) {
		return errProcessDone
	}
	if err != nil {
		return fmt.Errorf("failed to stop process %d: %w", proc.Pid, err)
	}
	return nil
}
