package main

import "github.com/fakeyudi/gazetrace/cmd"

func main() {
	cmd.Execute()
}
