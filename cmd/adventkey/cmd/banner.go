package cmd

import (
	"fmt"
	"io"
)

const banner = `
             _                 _   _              
    __ _  __| |_   _____ _ __ | |_| | _____ _   _ 
   / _' |/ _' \ \ / / _ \ '_ \| __| |/ / _ \ | | |
  | (_| | (_| |\ V /  __/ | | | |_|   <  __/ |_| |
   \__,_|\__,_| \_/ \___|_| |_|\__|_|\_\___|\__, |
                                            |___/ 
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[31m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Access Code Verifier - Version %s\x1b[0m\n\n", Version)
}
