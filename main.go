package main

import "github.com/samsaffron/orchat/cmd"

func main() {
	cmd.Execute()
}
