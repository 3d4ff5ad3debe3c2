//go:build windows

package progress

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableWindowsANSI turns on virtual terminal processing so the mpb bars
// render in cmd.exe and PowerShell.
func enableWindowsANSI(f *os.File) {
	const enableVirtualTerminalProcessing = 0x0004

	handle := windows.Handle(f.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(handle, &mode); err == nil {
		_ = windows.SetConsoleMode(handle, mode|enableVirtualTerminalProcessing)
	}
}
