package commands

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bastionzero/rsakit"
	"github.com/bastionzero/rsakit/keyformat"
)

// KeyCommandHandler handles key generation, conversion and inspection
type KeyCommandHandler struct {
	app *App
}

// GenerateKeyCmd generates a key and writes it in the configured private format. With --partial,
// a search that runs out of time is saved to that file and the next run resumes from it
func (h *KeyCommandHandler) GenerateKeyCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	opts := h.app.Config.Key.GenerateOptions()
	opts.Logger = h.app.Logger.Slog()

	if flags.Changed("bits") {
		opts.Bits, _ = flags.GetInt("bits")
	}
	if flags.Changed("primes") {
		opts.NumPrimes, _ = flags.GetInt("primes")
	}
	if flags.Changed("exponent") {
		e, _ := flags.GetInt64("exponent")
		opts.Exponent = big.NewInt(e)
	}
	if flags.Changed("timeout") {
		opts.Timeout, _ = flags.GetDuration("timeout")
	}

	partialPath, _ := flags.GetString("partial")
	if partialPath != "" {
		partial, err := loadPartialKey(partialPath)
		if err != nil {
			return err
		}
		if partial != nil {
			h.app.Logger.Info("resuming key generation", "path", partialPath, "primes_found", len(partial.Primes))
			opts.Partial = partial
		}
	}

	key, err := rsakit.GenerateKey(cmd.Context(), opts)
	var timeout *rsakit.TimeoutError
	if errors.As(err, &timeout) && partialPath != "" {
		encoded, encodeErr := timeout.Partial.EncodePEM()
		if encodeErr != nil {
			return fmt.Errorf("%w (and the partial key could not be saved: %s)", err, encodeErr)
		}
		if writeErr := os.WriteFile(filepath.Clean(partialPath), []byte(encoded), 0600); writeErr != nil {
			return fmt.Errorf("%w (and the partial key could not be saved: %s)", err, writeErr)
		}
		return fmt.Errorf("%w; run again with --partial %s to resume", err, partialPath)
	}
	if err != nil {
		return err
	}
	if partialPath != "" {
		if err := os.Remove(filepath.Clean(partialPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.app.Logger.Warn("failed to remove partial key", "path", partialPath, "error", err)
		}
	}

	format, formatOpts, err := h.outputFormat(cmd, h.app.Config.Format.Private, "password")
	if err != nil {
		return err
	}
	out, err := keyformat.MarshalPrivate(key, format, formatOpts)
	if err != nil {
		return err
	}
	outPath, _ := flags.GetString("out")
	if err := writeOutput(cmd, outPath, out); err != nil {
		return err
	}

	if publicPath, _ := flags.GetString("public-out"); publicPath != "" {
		publicFormat, err := keyformat.ParseFormat(h.app.Config.Format.Public)
		if err != nil {
			return err
		}
		if format == keyformat.OpenSSHPrivate || format == keyformat.PuTTY {
			publicFormat = keyformat.OpenSSH
		}
		pub, err := keyformat.MarshalPublic(key, publicFormat, formatOpts)
		if err != nil {
			return err
		}
		if err := writeOutput(cmd, publicPath, pub); err != nil {
			return err
		}
	}

	h.app.Logger.Info("key written", "bits", key.BitLen(), "primes", len(key.Primes), "format", format)
	return nil
}

func loadPartialKey(path string) (*rsakit.PartialKey, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read partial key: %w", err)
	}
	return rsakit.DecodePartialKeyPEM(string(data))
}

// ConvertKeyCmd rewrites a key in another format, optionally changing its password
func (h *KeyCommandHandler) ConvertKeyCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	inFormat, _ := flags.GetString("in-format")
	password, _ := flags.GetString("password")

	key, detected, err := readKey(cmd, inPath, inFormat, password)
	if err != nil {
		return err
	}
	h.app.Logger.Debug("read key", "format", detected, "bits", key.BitLen(), "private", key.IsPrivate())

	public, _ := flags.GetBool("public")
	if public || !key.IsPrivate() {
		return h.writePublic(cmd, key)
	}

	format, formatOpts, err := h.outputFormat(cmd, h.app.Config.Format.Private, "new-password")
	if err != nil {
		return err
	}
	out, err := keyformat.MarshalPrivate(key, format, formatOpts)
	if err != nil {
		return err
	}
	outPath, _ := flags.GetString("out")
	return writeOutput(cmd, outPath, out)
}

// PublicKeyCmd extracts the public half of a key
func (h *KeyCommandHandler) PublicKeyCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	inFormat, _ := flags.GetString("in-format")
	password, _ := flags.GetString("password")

	key, _, err := readKey(cmd, inPath, inFormat, password)
	if err != nil {
		return err
	}
	return h.writePublic(cmd, key)
}

func (h *KeyCommandHandler) writePublic(cmd *cobra.Command, key *rsakit.Key) error {
	format, formatOpts, err := h.outputFormat(cmd, h.app.Config.Format.Public, "")
	if err != nil {
		return err
	}
	out, err := keyformat.MarshalPublic(key, format, formatOpts)
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")
	return writeOutput(cmd, outPath, out)
}

// outputFormat resolves --format, --der and the named password flag against the configured defaults
func (h *KeyCommandHandler) outputFormat(cmd *cobra.Command, fallback, passwordFlag string) (keyformat.Format, *keyformat.Options, error) {
	flags := cmd.Flags()
	name, _ := flags.GetString("format")
	if name == "" {
		name = fallback
	}
	format, err := keyformat.ParseFormat(name)
	if err != nil {
		return 0, nil, err
	}

	var password []byte
	if passwordFlag != "" {
		value, _ := flags.GetString(passwordFlag)
		password = []byte(value)
	}
	opts, err := h.app.Config.Format.Options(password)
	if err != nil {
		return 0, nil, err
	}
	opts.DER, _ = flags.GetBool("der")
	return format, opts, nil
}

// FingerprintCmd prints the ssh-keygen style fingerprint of a key
func (h *KeyCommandHandler) FingerprintCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	inPath, _ := flags.GetString("in")
	password, _ := flags.GetString("password")
	alg, _ := flags.GetString("alg")

	key, _, err := readKey(cmd, inPath, "", password)
	if err != nil {
		return err
	}
	fingerprint, err := keyformat.Fingerprint(key, alg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), fingerprint)
	return err
}

func initKeyCommands(rootCmd *cobra.Command, app *App) {
	handler := &KeyCommandHandler{app: app}

	genKeyCmd := &cobra.Command{
		Use:   "genkey",
		Short: "Generate an RSA key",
		Args:  cobra.NoArgs,
		RunE:  handler.GenerateKeyCmd,
	}
	genKeyCmd.Flags().Int("bits", 2048, "Modulus size in bits")
	genKeyCmd.Flags().Int("primes", 0, "Number of primes; 0 picks a count from the size")
	genKeyCmd.Flags().Int64("exponent", 65537, "Public exponent")
	genKeyCmd.Flags().Duration("timeout", 0, "Give up after this long; 0 means no limit")
	genKeyCmd.Flags().String("partial", "", "File that saves and resumes a search that timed out")
	genKeyCmd.Flags().String("format", "", "Private key format: pkcs1, pkcs8, openssh-private, putty, xml or sexpr")
	genKeyCmd.Flags().String("password", "", "Encrypt the private key with this password")
	genKeyCmd.Flags().Bool("der", false, "Write PKCS#1 and PKCS#8 as binary DER")
	genKeyCmd.Flags().String("out", "", "Private key output file (default stdout)")
	genKeyCmd.Flags().String("public-out", "", "Also write the public key to this file")
	rootCmd.AddCommand(genKeyCmd)

	convertCmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a key to another format",
		Args:  cobra.NoArgs,
		RunE:  handler.ConvertKeyCmd,
	}
	convertCmd.Flags().String("in", "", "Input key file (default stdin)")
	convertCmd.Flags().String("in-format", "", "Input format; detected when empty")
	convertCmd.Flags().String("password", "", "Password of the input key")
	convertCmd.Flags().String("new-password", "", "Password for the output key; empty writes it unencrypted")
	convertCmd.Flags().String("format", "", "Output format")
	convertCmd.Flags().Bool("public", false, "Write only the public key")
	convertCmd.Flags().Bool("der", false, "Write PKCS#1 and PKCS#8 as binary DER")
	convertCmd.Flags().String("out", "", "Output file (default stdout)")
	rootCmd.AddCommand(convertCmd)

	pubKeyCmd := &cobra.Command{
		Use:   "pubkey",
		Short: "Extract the public key",
		Args:  cobra.NoArgs,
		RunE:  handler.PublicKeyCmd,
	}
	pubKeyCmd.Flags().String("in", "", "Input key file (default stdin)")
	pubKeyCmd.Flags().String("in-format", "", "Input format; detected when empty")
	pubKeyCmd.Flags().String("password", "", "Password of the input key")
	pubKeyCmd.Flags().String("format", "", "Public key format: pkcs1, pkcs8, openssh, xml or sexpr")
	pubKeyCmd.Flags().Bool("der", false, "Write PKCS#1 and PKCS#8 as binary DER")
	pubKeyCmd.Flags().String("out", "", "Output file (default stdout)")
	rootCmd.AddCommand(pubKeyCmd)

	fingerprintCmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the fingerprint of a key",
		Args:  cobra.NoArgs,
		RunE:  handler.FingerprintCmd,
	}
	fingerprintCmd.Flags().String("in", "", "Input key file (default stdin)")
	fingerprintCmd.Flags().String("password", "", "Password of the input key")
	fingerprintCmd.Flags().String("alg", "sha256", "Fingerprint hash: md5 or sha256")
	rootCmd.AddCommand(fingerprintCmd)
}
