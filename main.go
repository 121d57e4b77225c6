package main

import "github.com/chadmayfield/weatherapp/cmd"

func main() {
	cmd.Execute()
}
