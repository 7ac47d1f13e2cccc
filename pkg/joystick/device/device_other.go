// +build !linux

package device

import "errors"

// Open is only supported on linux.
func Open(index int) (Device, error) {
	return nil, errors.New("joystick not supported on this platform")
}

// DetectAndOpen is only supported on linux.
func DetectAndOpen(startIndex int) (Device, error) {
	return nil, ErrNotFound
}
