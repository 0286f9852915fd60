package main

import "github.com/ncastellanos/transmail/cmd/transmail/cmd"

func main() {
	cmd.Execute()
}
