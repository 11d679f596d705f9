//go:build (linux || freebsd || openbsd || netbsd || dragonfly) && cgo

package clipboard

import "golang.design/x/clipboard"

func initBackend() error {
	if !hasDisplay() {
		return errNoDisplay
	}
	return clipboard.Init()
}

func writePNG(data []byte) error {
	clipboard.Write(clipboard.FmtImage, data)
	return nil
}

func writeText(data []byte) error {
	clipboard.Write(clipboard.FmtText, data)
	return nil
}
