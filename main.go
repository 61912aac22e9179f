package main

import "github.com/tomkarw/kiwi-store/cmd"

func main() {
	cmd.Execute()
}
