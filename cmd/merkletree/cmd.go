package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/screwyprof/airdrop/merkle"
	"github.com/screwyprof/airdrop/web/handler/bind"
)

var ErrNotAllocated = errors.New("address has no allocation")

type proofOutput struct {
	Address string   `json:"address"`
	Amount  string   `json:"amount"`
	Leaf    string   `json:"leaf"`
	Root    string   `json:"root"`
	Proof   []string `json:"proof"`
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "merkletree",
		Short:        "Build and check airdrop Merkle trees off-chain.",
		Version:      version + " (" + date + ")",
		SilenceUsage: true,
	}

	cmd.AddCommand(rootOfCmd())
	cmd.AddCommand(proofCmd())
	cmd.AddCommand(verifyCmd())

	return cmd
}

func rootOfCmd() *cobra.Command {
	var allocationsFile string

	cmd := &cobra.Command{
		Use:   "root",
		Short: "Print the Merkle root committing to an allocation file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			allocations, err := loadAllocations(allocationsFile)
			if err != nil {
				return err
			}

			tree, err := merkle.NewTree(allocations)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), tree.Root().Hex())
			return err
		},
	}

	cmd.Flags().StringVarP(&allocationsFile, "allocations", "a", "", "allocation JSON file")
	_ = cmd.MarkFlagRequired("allocations")
	return cmd
}

func proofCmd() *cobra.Command {
	var allocationsFile string

	cmd := &cobra.Command{
		Use:   "proof <address>",
		Short: "Print the amount, leaf and proof for one allocation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := bind.Address(args[0])
			if err != nil {
				return err
			}

			allocations, err := loadAllocations(allocationsFile)
			if err != nil {
				return err
			}

			tree, err := merkle.NewTree(allocations)
			if err != nil {
				return err
			}

			amount, ok := allocationOf(allocations, account)
			if !ok {
				return fmt.Errorf("%w: %s", ErrNotAllocated, account.Hex())
			}

			proof, err := tree.Proof(account, amount)
			if err != nil {
				return err
			}

			out := proofOutput{
				Address: account.Hex(),
				Amount:  amount.Dec(),
				Leaf:    merkle.Leaf(account, amount).Hex(),
				Root:    tree.Root().Hex(),
				Proof:   hexes(proof),
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&allocationsFile, "allocations", "a", "", "allocation JSON file")
	_ = cmd.MarkFlagRequired("allocations")
	return cmd
}

func verifyCmd() *cobra.Command {
	var (
		rootHex string
		proofs  []string
	)

	cmd := &cobra.Command{
		Use:   "verify <address> <amount>",
		Short: "Check a proof against a root; exits non-zero when it does not verify.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := bind.Address(args[0])
			if err != nil {
				return err
			}

			amount, err := bind.Amount(args[1])
			if err != nil {
				return err
			}

			root, err := bind.Hash(rootHex)
			if err != nil {
				return err
			}

			proof, err := bind.Proof(proofs)
			if err != nil {
				return err
			}

			if !merkle.Verify(proof, root, merkle.Leaf(account, amount)) {
				return fmt.Errorf("proof does not verify for %s against %s", account.Hex(), root.Hex())
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}

	cmd.Flags().StringVarP(&rootHex, "root", "r", "", "committed Merkle root")
	cmd.Flags().StringSliceVarP(&proofs, "proof", "p", nil, "comma separated proof hashes, leaf level first")
	_ = cmd.MarkFlagRequired("root")
	return cmd
}

func loadAllocations(path string) ([]merkle.Allocation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return merkle.ReadAllocations(f)
}

func allocationOf(allocations []merkle.Allocation, account common.Address) (*uint256.Int, bool) {
	for _, a := range allocations {
		if a.Account == account {
			return a.Amount, true
		}
	}
	return nil, false
}

func hexes(hashes []common.Hash) []string {
	out := make([]string, len(hashes))
	for i, h := range hashes {
		out[i] = h.Hex()
	}
	return out
}
