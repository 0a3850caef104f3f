// Command providerdesk is the provider dashboard command line.
package main

import "github.com/nimburion/providerdesk/pkg/cli"

func main() {
	cli.Execute()
}
