// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/spf13/cobra"

	"github.com/bootpack/bootpack/internal/jarmode"
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/integrity"
	"github.com/bootpack/bootpack/pkg/types"
)

func newVerifyCommand(app *App) *cobra.Command {
	var trustedKey string
	cmd := &cobra.Command{
		Use:   "verify CONTAINER",
		Short: "Check a container against its integrity record",
		Long: `Check every entry of a container against the digests recorded in
META-INF/BOOT.SF and the signature in META-INF/BOOT.SIG.

The verdict is valid, unsigned or tampered; tampered exits with status 6
and lists every offending entry. With --trusted-key (or verify.trusted_key
in the configuration) the record must be signed by that key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stderr := cmd.ErrOrStderr()
			if trustedKey == "" {
				trustedKey = app.cfg.Verify.TrustedKey
			}
			opts := integrity.VerifyOptions{Logger: app.logger}
			if trustedKey != "" {
				key, err := integrity.ReadPublicKey(trustedKey)
				if err != nil {
					return app.failure(stderr, err)
				}
				opts.TrustedKey = key
			}

			src, err := container.OpenSource(nil, args[0])
			if err != nil {
				return app.failure(stderr, err)
			}
			defer src.Close()

			res, err := integrity.Verify(src, opts)
			if err != nil {
				return app.failure(stderr, err)
			}
			jarmode.PrintResult(cmd.OutOrStdout(), src.Location(), res)
			if res.Status == integrity.Tampered {
				return &ExitError{Code: types.ExitIntegrity, Err: res.Err()}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&trustedKey, "trusted-key", "", "public key file the container must be signed with")
	return cmd
}
