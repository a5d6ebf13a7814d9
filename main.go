// main.go
package main

import "payment-service/cmd"

func main() {
	cmd.Execute()
}
