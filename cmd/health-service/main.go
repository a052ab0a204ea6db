package main

import (
	"fmt"
	"os"

	"github.com/supahealth/supahealth/healthservice"
)

func main() {
	if err := healthservice.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
