package main

import "github.com/kozaktomas/placematch/cmd"

func main() {
	cmd.Execute()
}
