package main

import "sqlpulse/cmd"

func main() {
	cmd.Execute()
}
