package main

import "github.com/adopt-a-farmer/client-go/cmd/farmctl/cmd"

func main() {
	cmd.Execute()
}
