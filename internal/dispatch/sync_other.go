//go:build !linux

package dispatch

func syncFilesystems() {}
