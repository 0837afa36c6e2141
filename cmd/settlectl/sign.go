package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/clinic-settlement/internal/signing"
)

func signCmd() *cobra.Command {
	var (
		secret string
		fields bool
		verify string
	)

	cmd := &cobra.Command{
		Use:   "sign key=value...",
		Short: "Compute the gateway signature of a parameter set",
		Long: `Prints the canonical string and HMAC-SHA512 signature the gateway expects.

With --fields the arguments are plain values signed pipe-joined in the given
order, the layout of the querydr API.

Examples:
  settlectl sign vnp_Amount=15000000 vnp_TxnRef=24010100000042
  settlectl sign --fields 3f2a... 2.1.0 querydr DEMO0001 24010100000042
  settlectl sign --verify <hash> vnp_Amount=15000000 vnp_TxnRef=24010100000042`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or GATEWAY_HASH_SECRET is required")
			}
			out := cmd.OutOrStdout()

			if fields {
				fmt.Fprintln(out, strings.Join(args, "|"))
				fmt.Fprintln(out, signing.SignFields(secret, args...))
				return nil
			}

			params := make(map[string]string, len(args))
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok || k == "" {
					return fmt.Errorf("argument %q is not key=value", arg)
				}
				params[k] = v
			}

			if verify != "" {
				if !signing.Verify(secret, params, verify) {
					return fmt.Errorf("signature does not match")
				}
				fmt.Fprintln(out, "signature ok")
				return nil
			}

			canonical := signing.Canonicalize(params)
			fmt.Fprintln(out, canonical)
			fmt.Fprintln(out, signing.Sign(secret, canonical))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("GATEWAY_HASH_SECRET"), "gateway hash secret")
	cmd.Flags().BoolVar(&fields, "fields", false, "sign positional values pipe-joined")
	cmd.Flags().StringVar(&verify, "verify", "", "check this signature instead of printing one")

	return cmd
}
