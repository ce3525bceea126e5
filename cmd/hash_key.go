package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// hashKeyCmd generates the bcrypt hash that goes into
// security.gateway_api_key_hash. The plaintext key is handed to the
// frontend deployment; only the hash is stored in gateway config.
var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [key]",
	Short: "Hash a gateway API key for config",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("failed to hash key: %v", err)
		}
		fmt.Println(string(hash))
	},
}
