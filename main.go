package main

import "github.com/andresmejia3/facesheet/cmd"

func main() {
	cmd.Execute()
}
