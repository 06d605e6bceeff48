package main

import "github.com/glasslink/faceid/cmd"

func main() {
	cmd.Execute()
}
