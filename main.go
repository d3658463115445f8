package main

import "card-sync/cmd"

func main() {
	cmd.Execute()
}
