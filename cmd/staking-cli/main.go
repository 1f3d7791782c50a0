// staking-cli is a command-line client for a stakingd node. It keeps
// signing keys in an encrypted local keystore and submits signed
// instructions over JSON-RPC.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Klingon-tech/klingnet-staking/config"
	"github.com/Klingon-tech/klingnet-staking/internal/rpcclient"
	"github.com/Klingon-tech/klingnet-staking/internal/wallet"
	"github.com/spf13/cobra"
)

// app holds the global flags shared by every subcommand.
type app struct {
	rpcURL  string
	dataDir string
	network string
	wallet  string
	key     string
	timeout time.Duration

	// password reads a secret; replaced in tests.
	password func(prompt string) ([]byte, error)
	kdf      wallet.EncryptionParams
	client   *rpcclient.Client
}

func main() {
	if err := newRootCmd(&app{password: readPassword, kdf: wallet.DefaultParams()}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "staking-cli",
		Short:         "Client for the tiered staking pool program",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       config.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.client = rpcclient.New(a.rpcURL, rpcclient.WithTimeout(a.timeout))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.rpcURL, "rpc", "http://127.0.0.1:8745/", "RPC endpoint")
	pf.StringVar(&a.dataDir, "datadir", config.DefaultDataDir(), "data directory holding the keystore")
	pf.StringVar(&a.network, "network", string(config.Mainnet), "mainnet or testnet")
	pf.StringVar(&a.wallet, "wallet", "default", "keystore wallet name")
	pf.StringVar(&a.key, "key", "", "signing key name within the wallet")
	pf.DurationVar(&a.timeout, "timeout", 10*time.Second, "RPC timeout per attempt")

	root.AddCommand(
		walletCmd(a),
		keyCmd(a),
		poolCmd(a),
		userCmd(a),
		stakeCmd(a),
		claimCmd(a),
		unstakeCmd(a),
		tokenCmd(a),
		receiptCmd(a),
		statusCmd(a),
	)
	return root
}

// keystoreDir matches stakingd's layout: <datadir>/<network>/keystore.
func (a *app) keystoreDir() string {
	return filepath.Join(a.dataDir, a.network, "keystore")
}

func (a *app) requireKey() error {
	if a.key == "" {
		return fmt.Errorf("--key is required")
	}
	return nil
}
