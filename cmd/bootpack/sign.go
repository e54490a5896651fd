// SPDX-License-Identifier: MPL-2.0

package main

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/bootpack/bootpack/internal/issue"
	"github.com/bootpack/bootpack/pkg/integrity"
)

func newSignCommand(app *App) *cobra.Command {
	var (
		keyFile string
		output  string
	)
	cmd := &cobra.Command{
		Use:   "sign CONTAINER --key FILE",
		Short: "Record entry digests and sign them",
		Long: `Record the sha256 digest of every entry in META-INF/BOOT.SF and sign the
record with an ed25519 key into META-INF/BOOT.SIG. Entries are copied
without recompression and a launcher stub is kept. An existing record is
replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := integrity.ReadPrivateKey(keyFile)
			if err != nil {
				return app.failure(cmd.ErrOrStderr(), err)
			}
			out := output
			if out == "" {
				out = args[0]
			}
			rec, err := integrity.SignContainer(args[0], out, key)
			if err != nil {
				return app.failure(cmd.ErrOrStderr(), err)
			}
			pub, _ := key.Public().(ed25519.PublicKey)
			fmt.Fprintf(cmd.OutOrStdout(), "%s Signed %s (%d entries, key %s)\n",
				SuccessStyle.Render("✓"), KeyStyle.Render(out), len(rec.Entries), integrity.KeyID(pub))
			return nil
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "", "private key file created by 'bootpack keygen'")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the signed copy here instead of in place")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newKeygenCommand(app *App) *cobra.Command {
	var (
		prefix string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 signing key pair",
		Long: `Generate an ed25519 signing key pair: PREFIX.key holds the private key
(mode 0600), PREFIX.pub the public key to pass to 'verify --trusted-key'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stderr := cmd.ErrOrStderr()
			privPath, pubPath := prefix+".key", prefix+".pub"
			if !force {
				for _, p := range []string{privPath, pubPath} {
					if _, err := os.Stat(p); err == nil {
						return app.failure(stderr, issue.NewErrorContext().
							WithOperation("write key pair").
							WithResource(p).
							WithSuggestion("Pass --force to overwrite, or choose another --prefix").
							Wrap(fs.ErrExist).
							BuildError())
					} else if !errors.Is(err, fs.ErrNotExist) {
						return app.failure(stderr, err)
					}
				}
			}

			priv, err := integrity.GenerateKey()
			if err != nil {
				return app.failure(stderr, err)
			}
			pub, _ := priv.Public().(ed25519.PublicKey)
			privData, err := integrity.MarshalPrivateKey(priv)
			if err != nil {
				return app.failure(stderr, err)
			}
			pubData, err := integrity.MarshalPublicKey(pub)
			if err != nil {
				return app.failure(stderr, err)
			}
			if err := os.WriteFile(privPath, privData, 0o600); err != nil {
				return app.failure(stderr, err)
			}
			if err := os.WriteFile(pubPath, pubData, 0o644); err != nil {
				return app.failure(stderr, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Generated key %s\n", SuccessStyle.Render("✓"), integrity.KeyID(pub))
			fmt.Fprintf(out, "  private: %s\n  public:  %s\n", privPath, pubPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "bootpack", "path prefix of the key files")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing key files")
	return cmd
}
