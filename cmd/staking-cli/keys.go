package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/klingnet-staking/internal/wallet"
	"github.com/Klingon-tech/klingnet-staking/pkg/crypto"
	"github.com/Klingon-tech/klingnet-staking/pkg/types"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// passwordEnv, when set, is used instead of prompting.
const passwordEnv = "STAKING_PASSWORD"

func readPassword(prompt string) ([]byte, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return []byte(pw), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return password, nil
}

// newPassword prompts twice and requires both entries to match.
func (a *app) newPassword() ([]byte, error) {
	pw, err := a.password("New password: ")
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("password must not be empty")
	}
	if os.Getenv(passwordEnv) != "" {
		return pw, nil
	}
	confirm, err := a.password("Confirm password: ")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(pw, confirm) {
		return nil, fmt.Errorf("passwords do not match")
	}
	return pw, nil
}

func (a *app) keystore() (*wallet.Keystore, error) {
	return wallet.NewKeystore(a.keystoreDir())
}

// signer unlocks the --key of the --wallet.
func (a *app) signer() (*crypto.PrivateKey, error) {
	if err := a.requireKey(); err != nil {
		return nil, err
	}
	ks, err := a.keystore()
	if err != nil {
		return nil, err
	}
	pw, err := a.password(fmt.Sprintf("Password for wallet %q: ", a.wallet))
	if err != nil {
		return nil, err
	}
	return ks.Signer(a.wallet, a.key, pw)
}

// resolveAddress accepts a hex address or the name of a key in the wallet.
func (a *app) resolveAddress(s string) (types.Address, error) {
	if addr, err := types.ParseAddress(s); err == nil {
		return addr, nil
	}
	ks, err := a.keystore()
	if err != nil {
		return types.Address{}, err
	}
	entry, err := ks.Key(a.wallet, s)
	if err != nil {
		return types.Address{}, fmt.Errorf("%q is neither an address nor a key: %w", s, err)
	}
	return entry.Address, nil
}

// selfAddress is the address of --key without unlocking the wallet.
func (a *app) selfAddress() (types.Address, error) {
	if err := a.requireKey(); err != nil {
		return types.Address{}, err
	}
	return a.resolveAddress(a.key)
}

func walletCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "wallet", Short: "Manage keystore wallets"}

	var words int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a wallet from a new mnemonic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bits := wallet.Words24
			if words == 12 {
				bits = wallet.Words12
			}
			mnemonic, err := wallet.GenerateMnemonic(bits)
			if err != nil {
				return err
			}
			if err := a.createWallet(mnemonic); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wallet %q created. Write down the mnemonic:\n\n  %s\n\n", a.wallet, mnemonic)
			return nil
		},
	}
	create.Flags().IntVar(&words, "words", 24, "mnemonic length (12 or 24)")

	var mnemonic string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Create a wallet from an existing mnemonic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if mnemonic == "" {
				return fmt.Errorf("--mnemonic is required")
			}
			if err := a.createWallet(mnemonic); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wallet %q imported.\n", a.wallet)
			return nil
		},
	}
	imp.Flags().StringVar(&mnemonic, "mnemonic", "", "BIP-39 mnemonic")

	list := &cobra.Command{
		Use:   "list",
		Short: "List wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := a.keystore()
			if err != nil {
				return err
			}
			names, err := ks.List()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	cmd.AddCommand(create, imp, list)
	return cmd
}

func (a *app) createWallet(mnemonic string) error {
	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return err
	}
	pw, err := a.newPassword()
	if err != nil {
		return err
	}
	ks, err := a.keystore()
	if err != nil {
		return err
	}
	return ks.Create(a.wallet, seed, pw, a.kdf)
}

func keyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "key", Short: "Manage signing keys in a wallet"}

	newKey := &cobra.Command{
		Use:   "new <name>",
		Short: "Derive the next signing key and name it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := a.keystore()
			if err != nil {
				return err
			}
			pw, err := a.password(fmt.Sprintf("Password for wallet %q: ", a.wallet))
			if err != nil {
				return err
			}
			entry, err := ks.NewKey(a.wallet, args[0], pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", entry.Name, entry.Address)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the wallet's keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := a.keystore()
			if err != nil {
				return err
			}
			keys, err := ks.Keys(a.wallet)
			if err != nil {
				return err
			}
			var b strings.Builder
			for _, k := range keys {
				fmt.Fprintf(&b, "%s\t%s\tm/44'/8889'/%d'/0/%d\n", k.Name, k.Address, k.Account, k.Index)
			}
			fmt.Fprint(cmd.OutOrStdout(), b.String())
			return nil
		},
	}

	cmd.AddCommand(newKey, list)
	return cmd
}
