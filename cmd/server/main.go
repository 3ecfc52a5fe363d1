package main

import "github.com/lingopeer/realtime/cmd/server/cmd"

func main() {
	cmd.Execute()
}
