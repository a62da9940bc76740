package main

import "dollhouse/cmd"

func main() {
	cmd.Execute()
}
