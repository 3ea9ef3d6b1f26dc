package main

import "github.com/cfdlabs/idpflow/cmd"

func main() {
	cmd.Execute()
}
