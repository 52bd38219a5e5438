package main

import "github.com/YoungRaeKimm/CS492-project/cmd"

func main() {
	cmd.Execute()
}
