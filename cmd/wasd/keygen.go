package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wallet-storage/was"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a did:key Ed25519 identity",
	Long: `Generate a new Ed25519 keypair and print its did:key identifier
along with the private seed. Keep the seed secret; it is the only way to
sign requests as this identity.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

func runKeygen(cmd *cobra.Command, args []string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}

	did := was.FormatDIDKey(pub)
	fmt.Fprintf(cmd.OutOrStdout(), "did:        %s\n", did)
	fmt.Fprintf(cmd.OutOrStdout(), "keyId:      %s#%s\n", did, did[len("did:key:"):])
	fmt.Fprintf(cmd.OutOrStdout(), "seed (hex): %s\n", hex.EncodeToString(priv.Seed()))
	return nil
}
