package main

import "folioAPI/cmd"

func main() {
	cmd.Execute()
}
