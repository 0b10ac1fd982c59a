// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package main

import (
	"github.com/agata-anastazja/throttler/cmd/throttle/app"
)

func main() {
	app.Main()
}
