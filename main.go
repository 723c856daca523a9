package main

import "FragFM/cmd"

func main() {
	cmd.Execute()
}
