package main

import "github.com/lindenau-systems/folio/cmd/folio/cmd"

func main() {
	cmd.Execute()
}
