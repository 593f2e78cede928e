// Command keygen prints a fresh vault encryption key, or writes it to a
// file with -o. The key goes into SECUREPASS_ENCRYPTION_KEY.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/cryptox"
)

func main() {
	out := flag.String("o", "", "write the key to this file instead of stdout")
	force := flag.Bool("force", false, "overwrite an existing file")
	flag.Parse()

	key := common.GenerateRandByteArray(cryptox.KeySize)
	hexKey := hex.EncodeToString(key)
	common.WipeByteArray(key)

	if *out == "" {
		fmt.Println(hexKey)
		return
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Refusing to overwrite.\n", *out)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, []byte(hexKey+"\n"), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Key written to %s\n", *out)
}
