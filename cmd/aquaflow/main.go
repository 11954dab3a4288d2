// Command aquaflow measures two pulse flow sensors, publishes their rates to
// a remote store and drives the pump relay from the command it reads back.
package main

func main() {
	Execute()
}
