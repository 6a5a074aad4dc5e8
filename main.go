package main

import "github.com/gasgit/gasgit/cmd"

func main() {
	cmd.Execute()
}
