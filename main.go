package main

import "github.com/audiolibrelab/wffcapture/cmd"

func main() {
	cmd.Execute()
}
