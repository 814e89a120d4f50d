package main

import "github.com/jrjocham/apihub/cmd"

func main() {
	cmd.Execute()
}
