//go:build !linux

package uart

// configureTTY is a no-op where termios ioctls aren't wired.
func configureTTY(fd uintptr, line Line) error {
	return nil
}
