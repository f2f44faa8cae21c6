package main

import "github.com/coresistem/sip-api-sub000/cmd/sipctl/cmd"

func main() {
	cmd.Execute()
}
