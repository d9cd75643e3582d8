package main

import "admart/cmd"

func main() {
	cmd.Execute()
}
