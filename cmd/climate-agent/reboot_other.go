//go:build !linux

package main

import "errors"

func rebootHost() error {
	return errors.New("reboot not supported on this platform")
}
