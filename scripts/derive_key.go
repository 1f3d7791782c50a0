// derive_key.go prints the staking keys a mnemonic derives, for checking a
// wallet backup without a keystore.
// Usage: go run scripts/derive_key.go <mnemonic-file> [count]
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/Klingon-tech/klingnet-staking/internal/wallet"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <mnemonic-file> [count]")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	count := uint64(1)
	if len(os.Args) > 2 {
		if count, err = strconv.ParseUint(os.Args[2], 10, 32); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	seed, err := wallet.SeedFromMnemonic(string(data), os.Getenv("MNEMONIC_PASSPHRASE"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	master, err := wallet.NewMasterKey(seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for i := uint32(0); i < uint32(count); i++ {
		key, err := master.DeriveStakingKey(0, i)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("path=m/44'/8889'/0'/0/%d pubkey=%s address=%s\n", i, hex.EncodeToString(key.PublicKeyBytes()), key.Address())
	}
}
