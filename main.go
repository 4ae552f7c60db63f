package main

import (
	"os"

	"github.com/GoPowerDNS-Admin/go-oidc-users/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
