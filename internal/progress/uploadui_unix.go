//go:build !windows

package progress

import "os"

// enableWindowsANSI does nothing outside Windows.
func enableWindowsANSI(*os.File) {}
