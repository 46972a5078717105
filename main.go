package main

import "user-api/cmd"

func main() {
	cmd.Execute()
}
