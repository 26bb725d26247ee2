package main

import "sonora/cmd"

func main() {
	cmd.Execute()
}
