package main

import "picta/cmd"

func main() {
	cmd.Execute()
}
