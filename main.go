package main

import "github.com/frahmantamala/knowledge-gateway/cmd"

func main() {
	cmd.Execute()
}
