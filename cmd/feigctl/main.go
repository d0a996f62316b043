// feigctl -- command-line client for the feig-rfid-bridge JSON API.
package main

import "github.com/bookwaves/feig-rfid-bridge/cmd/feigctl/commands"

func main() {
	commands.Execute()
}
