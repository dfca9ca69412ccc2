package main

import "flixclusive/cmd"

func main() {
	cmd.Execute()
}
