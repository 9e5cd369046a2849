package main

import "github.com/frahmantamala/kakeibo/cmd"

func main() {
	cmd.Execute()
}
