package main

import "github.com/familysync/familysync-go/cmd/famsyncctl/cmd"

func main() {
	cmd.Execute()
}
