package main

import (
	"runtime"

	"FaceOverlay/cmd"
)

func init() {
	// HighGUI windows must be created and pumped from the main OS thread
	runtime.LockOSThread()
}

func main() {
	cmd.Execute()
}
