package main

import "github.com/solarlog/vbusmirror/cmd"

func main() {
	cmd.Execute()
}
