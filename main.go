package main

import "github.com/audiolibrelab/robocapture/cmd"

func main() {
	cmd.Execute()
}
