//go:build !linux && !darwin

package bitbase

import "os"

// mapFile falls back to a plain read on platforms without a mmap binding
// wired in (anything but linux/darwin).
func mapFile(path string) (data []byte, release func(), err error) {
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, func() {}, nil
}
