package main

import "github.com/dkettner/mongoweb/cmd/mongoweb/cmd"

func main() {
	cmd.Execute()
}
