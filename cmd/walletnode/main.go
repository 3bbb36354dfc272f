package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"armorycore/hat"
	"armorycore/pkg/config"
	"armorycore/pkg/wire"
	"armorycore/wallet"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.Warnf("no config file found, using command-line flags only: %v", err)
		cfg = &config.Config{}
	} else if cfg.Logging.Level != "" {
		if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
			logrus.SetLevel(lvl)
		}
	}

	rootCmd := &cobra.Command{Use: "walletnode"}
	rootCmd.AddCommand(createCmd(cfg))
	rootCmd.AddCommand(openCmd(cfg))
	rootCmd.AddCommand(restoreCmd(cfg))
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

// stdinPrompt reads a line from stdin, used as a hat.PassphrasePrompt. It
// does not suppress terminal echo: this binary is a reference CLI, not the
// hardened entry point spec.md's SecurePrint flow is meant to protect.
func stdinPrompt(label string) hat.PassphrasePrompt {
	return func(keyID []byte) ([]byte, error) {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return nil, err
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}
}

func networkFromFlag(name string) (wire.Network, error) {
	switch strings.ToLower(name) {
	case "mainnet", "":
		return wire.Mainnet, nil
	case "testnet":
		return wire.Testnet, nil
	default:
		return 0, fmt.Errorf("unknown network %q", name)
	}
}

// walletPath resolves the path argument against cfg.Storage.WalletFile: an
// explicit argument always wins, and the configured default is used only
// when the command was invoked with none.
func walletPath(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Storage.WalletFile != "" {
		return cfg.Storage.WalletFile, nil
	}
	return "", fmt.Errorf("no wallet path given and none configured in cmd/walletnode/config")
}

func createCmd(cfg *config.Config) *cobra.Command {
	network := cfg.Network.Network
	cmd := &cobra.Command{
		Use:   "create [path]",
		Short: "create a new wallet file and print its Easy16 paper backup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := walletPath(cfg, args)
			if err != nil {
				return err
			}
			net, err := networkFromFlag(network)
			if err != nil {
				return err
			}
			w, lines, err := wallet.CreateWalletWithBackup(path, net, stdinPrompt("set a wallet passphrase"))
			if err != nil {
				return err
			}
			defer w.Close()

			logrus.Infof("created wallet %s at %s", w.Header().WalletID, path)
			fmt.Println("root public key:", hex.EncodeToString(w.Root().Single.PubKey.Compressed))
			fmt.Println("write down these Easy16 backup lines now; they will not be shown again:")
			for _, line := range lines {
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&network, "network", network, "mainnet or testnet")
	return cmd
}

func openCmd(cfg *config.Config) *cobra.Command {
	network := cfg.Network.Network
	cmd := &cobra.Command{
		Use:   "open [path]",
		Short: "open an existing wallet file and print its header and root",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := walletPath(cfg, args)
			if err != nil {
				return err
			}
			net, err := networkFromFlag(network)
			if err != nil {
				return err
			}
			w, err := wallet.Open(path, net, stdinPrompt("wallet passphrase"))
			if err != nil {
				return err
			}
			defer w.Close()

			logrus.Infof("opened wallet %s", w.Header().WalletID)
			fmt.Println("wallet id:", w.Header().WalletID)
			fmt.Println("root public key:", hex.EncodeToString(w.Root().Single.PubKey.Compressed))
			return nil
		},
	}
	cmd.Flags().StringVar(&network, "network", network, "mainnet or testnet")
	return cmd
}

func restoreCmd(cfg *config.Config) *cobra.Command {
	network := cfg.Network.Network
	cmd := &cobra.Command{
		Use:   "restore <path> <backup-file>",
		Short: "rebuild a wallet from Easy16 backup lines, repairing single-byte corruption",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			net, err := networkFromFlag(network)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var lines []string
			for _, line := range strings.Split(string(raw), "\n") {
				line = strings.TrimSpace(line)
				if line != "" {
					lines = append(lines, line)
				}
			}

			w, err := wallet.CreateFromBackup(args[0], lines, net, stdinPrompt("set a wallet passphrase"))
			if err != nil {
				return err
			}
			defer w.Close()

			logrus.Infof("restored wallet %s at %s", w.Header().WalletID, args[0])
			fmt.Println("wallet id:", w.Header().WalletID)
			fmt.Println("root public key:", hex.EncodeToString(w.Root().Single.PubKey.Compressed))
			return nil
		},
	}
	cmd.Flags().StringVar(&network, "network", network, "mainnet or testnet")
	return cmd
}
